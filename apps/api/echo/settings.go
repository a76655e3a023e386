package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/settings"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".ico": true, ".webp": true}

type settingsApi struct {
	svc       *settings.Service
	validate  *validator.Validate
	mediaRoot string
}

func registerSettingsAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *settings.Service,
	validate *validator.Validate,
	mediaRoot string,
) {
	api := settingsApi{svc: svc, validate: validate, mediaRoot: mediaRoot}

	sg := g.Group("/settings")
	sg.GET("", api.retrieve)
	mws := append(append([]echo.MiddlewareFunc{}, authed...), adminMiddleware())
	sg.PUT("", api.update, mws...)
}

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

// update accepts JSON, or a multipart form carrying `logo` and `favicon` files.
func (api *settingsApi) update(ctx echo.Context) error {
	var data settings.Update
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to settings.Update")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		var err error
		if data.Logo, err = api.saveFile(ctx, "logo"); err != nil {
			return err
		}
		if data.Favicon, err = api.saveFile(ctx, "favicon"); err != nil {
			return err
		}
	}

	s, err := api.svc.Update(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

// saveFile stores the uploaded file `field` under MEDIA_ROOT/settings and returns its public path.
// It returns "" when no file was uploaded.
func (api *settingsApi) saveFile(ctx echo.Context, field string) (string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", errors.Wrapf(err, "reading %s file", field)
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageExts[ext] {
		return "", core.NewValidationError(nil, core.FieldError{Field: field, Error: "unsupported image type"})
	}

	name := field + "-" + uuid.New().String() + ext
	dir := filepath.Join(api.mediaRoot, "settings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}
	if err := copyUpload(fh, filepath.Join(dir, name)); err != nil {
		return "", errors.Wrapf(err, "saving %s file", field)
	}
	return path.Join("/media", "settings", name), nil
}

func copyUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
