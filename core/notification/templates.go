package notification

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/trezcool/miradi/core"
)

const displayDateLayout = "02/01/2006"

var (
	statusHeadlines = map[string]string{
		"aprobado":  "¡Felicidades! Tu proyecto ha sido aprobado.",
		"rechazado": "Tu proyecto ha sido rechazado. Por favor, revisa los comentarios.",
		"revision":  "Tu proyecto está en revisión.",
	}

	statusTmpl = template.Must(template.New("status").Parse(`Hola {{.TeacherName}},

{{.Headline}}

Proyecto: {{.ProjectTitle}}
{{- if .Comments}}
Comentarios: {{.Comments}}
{{- end}}

Accede a la plataforma para más detalles.`))

	reminderTmpl = template.Must(template.New("reminder").Parse(`Hola {{.TeacherName}},

Recordatorio: tienes plazos próximos a vencer

Proyecto: {{.ProjectTitle}}
{{- range .Items}}
- {{.Label}}: {{.DisplayDate}} ({{.DaysLeftText}})
{{- end}}

Por favor, asegúrate de cumplir con los plazos establecidos.`))
)

type statusData struct {
	TeacherName  string
	ProjectTitle string
	Headline     string
	Comments     string
}

// RenderStatusMessage renders the WhatsApp message of a status change.
// ok is false for statuses without a message.
func RenderStatusMessage(teacherName, projectTitle, status, comments string) (msg string, ok bool, err error) {
	headline, ok := statusHeadlines[status]
	if !ok {
		return "", false, nil
	}
	var buff bytes.Buffer
	err = statusTmpl.Execute(&buff, statusData{
		TeacherName:  teacherName,
		ProjectTitle: projectTitle,
		Headline:     headline,
		Comments:     comments,
	})
	if err != nil {
		return "", true, err
	}
	return buff.String(), true, nil
}

// StatusNotification builds the in-app notification of a status change.
// Statuses other than aprobado and rechazado fall back to the "under review" message.
func StatusNotification(id, userID, status string, now time.Time) Notification {
	n := Notification{
		ID:        id,
		UserID:    userID,
		Type:      TypeProject,
		CreatedAt: now,
	}
	switch status {
	case "aprobado":
		n.Title = "¡Proyecto aprobado!"
		n.Message = "Tu proyecto ha sido aprobado."
	case "rechazado":
		n.Title = "Proyecto rechazado"
		n.Message = "Tu proyecto ha sido rechazado. Revisa los comentarios."
	default:
		n.Title = "Proyecto en revisión"
		n.Message = "Tu proyecto está siendo revisado."
	}
	return n
}

// Reminder groups the due deadlines of one project for its teacher.
type Reminder struct {
	TeacherID    string         `json:"teacherId"`
	TeacherName  string         `json:"teacherName"`
	PhoneNumber  string         `json:"phoneNumber"`
	Email        string         `json:"-"`
	ProjectID    string         `json:"projectId"`
	ProjectTitle string         `json:"projectTitle"`
	PeriodName   string         `json:"periodName"`
	Items        []ReminderItem `json:"deadlines"`
}

type ReminderItem struct {
	Kind     DeadlineKind `json:"kind"`
	Key      string       `json:"key"`
	Date     core.Date    `json:"date"`
	DaysLeft int          `json:"daysLeft"`
}

func (it ReminderItem) Label() string {
	switch it.Kind {
	case KindSubmission:
		return "Presentación de proyectos"
	case KindTrimestral:
		return "Informe trimestral"
	case KindFinal:
		return "Informe final"
	}
	return "Plazo"
}

func (it ReminderItem) DisplayDate() string { return it.Date.Format(displayDateLayout) }

func (it ReminderItem) DaysLeftText() string {
	if it.DaysLeft == 1 {
		return "vence mañana"
	}
	return fmt.Sprintf("quedan %d días", it.DaysLeft)
}

// Render renders the WhatsApp reminder text.
func (r Reminder) Render() (string, error) {
	var buff bytes.Buffer
	if err := reminderTmpl.Execute(&buff, r); err != nil {
		return "", err
	}
	return buff.String(), nil
}

// Notification builds the in-app counterpart of the reminder.
func (r Reminder) Notification(id string, now time.Time) Notification {
	var buff bytes.Buffer
	_, _ = fmt.Fprintf(&buff, "Proyecto %q:", r.ProjectTitle)
	for i, it := range r.Items {
		if i > 0 {
			buff.WriteString(",")
		}
		_, _ = fmt.Fprintf(&buff, " %s el %s", it.Label(), it.DisplayDate())
	}
	buff.WriteString(".")
	return Notification{
		ID:        id,
		UserID:    r.TeacherID,
		Title:     "Plazos próximos a vencer",
		Message:   buff.String(),
		Type:      TypeDeadline,
		CreatedAt: now,
	}
}
