package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Logger         core.Logger
		Shutdown       func() // signals a graceful shutdown
		UserSvc        user.Service
		JournalSvc     journal.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts       *Options
		app        *echo.Echo
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	s := &server{
		opts:       opts,
		app:        echo.New(),
		validate:   validate,
		translator: translator,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	appJWTConfig.SigningKey = []byte(core.Conf.SecretKey)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.translator, s.opts.Shutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc, s.validate, s.translator)
	registerJournalAPI(v1, jwt, s.opts.JournalSvc, s.validate)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Mazoezi API!")
}
