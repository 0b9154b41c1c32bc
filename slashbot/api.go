package slashbot

import (
	"context"
	"errors"
	"fmt"
	ginPprof "github.com/gin-contrib/pprof"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	apiHealthCheck          = "/healthz"
	apiPrefix               = "/api"
	apiPathSetupValidate    = "/setup/validate"
	apiPathSetupEnvFile     = "/setup/env"
	apiPathSetupDeployShell = "/setup/script"
	pprofPrefix             = "/debug/pprof"

	envFileName      = ".env"
	deployScriptName = "deploy.sh"
)

const (
	xRequestIDHeader = "X-Request-ID"
)

var (
	structValidator = validator.New()
)

// API serves the setup form endpoints: credential format checks, and
// generation of the env file and deploy script.
type API struct {
	config      *SetupAPIConfig
	development bool
	httpServer  *http.Server
	listener    net.Listener
	engine      *gin.Engine
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewAPI initializes and returns a new instance of the setup API.
func NewAPI(config *SetupAPIConfig, development bool) (*API, error) {
	if config == nil {
		return nil, errors.New("setup api config is required")
	}
	r := gin.New()

	api := &API{
		config:      config,
		development: development,
		engine:      r,
		logger:      newComponentLogger("setup_api", config.LogLevel),
	}

	api.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	if development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
		r.Use(gin.Recovery())
	}
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(api.logger),
		cors.New(corsConfig),
	)

	r.GET(apiHealthCheck, api.healthCheck)

	setup := r.Group(apiPrefix)
	setup.POST(apiPathSetupValidate, api.validateSetupForm)
	setup.POST(apiPathSetupEnvFile, api.generateEnvFile)
	setup.POST(apiPathSetupDeployShell, api.generateDeployScript)

	if development {
		ginPprof.Register(r, pprofPrefix)
	}

	return api, nil
}

// Serve listens on the configured address, and serves until Shutdown
// is called
func (a *API) Serve(ctx context.Context) error {
	a.mu.Lock()
	if a.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, defaultListenNetwork, a.config.Listen)
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
		}
		a.listener = ln
	}
	ln := a.listener
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "serving setup api", "addr", ln.Addr().String())
	return a.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server
func (a *API) Shutdown(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

// Addr returns the listener's address, once Serve has been called
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// httpError represents an error message returned to the client
type httpError struct {
	Error string `json:"error"`
}

// httpValidationError is returned when the setup form fails validation
type httpValidationError struct {
	Error       string          `json:"error"`
	Credentials CredentialCheck `json:"credentials"`
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindSetupForm decodes the request body into a SetupForm, starting from
// the default values, so omitted fields keep their defaults
func (*API) bindSetupForm(c *gin.Context) (SetupForm, bool) {
	form := DefaultSetupForm()
	if err := c.ShouldBindJSON(&form); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return form, false
	}
	return form, true
}

// bindValidSetupForm is bindSetupForm, additionally rejecting forms
// which fail SetupForm.Validate
func (a *API) bindValidSetupForm(c *gin.Context) (SetupForm, bool) {
	form, ok := a.bindSetupForm(c)
	if !ok {
		return form, false
	}
	if err := form.Validate(); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return form, false
	}
	return form, true
}

// validateSetupForm checks the format of the submitted credentials.
// Responds with 200 when every check passes, and 422 otherwise.
func (a *API) validateSetupForm(c *gin.Context) {
	form, ok := a.bindSetupForm(c)
	if !ok {
		return
	}
	check := form.CheckCredentials()
	if !check.Valid() {
		c.JSON(http.StatusUnprocessableEntity, check)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (a *API) generateEnvFile(c *gin.Context) {
	form, ok := a.bindValidSetupForm(c)
	if !ok {
		return
	}
	if err := ValidateDiscordToken(form.DiscordToken); err != nil {
		c.JSON(
			http.StatusUnprocessableEntity,
			httpValidationError{Error: err.Error(), Credentials: form.CheckCredentials()},
		)
		return
	}
	content, err := GenerateEnvFile(form)
	if err != nil {
		ginContextLogger(c).ErrorContext(c, "error generating env file", tint.Err(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}
	a.sendFile(c, envFileName, content)
}

func (a *API) generateDeployScript(c *gin.Context) {
	form, ok := a.bindValidSetupForm(c)
	if !ok {
		return
	}
	content, err := GenerateDeployScript(form)
	if err != nil {
		ginContextLogger(c).ErrorContext(c, "error generating deploy script", tint.Err(err))
		c.JSON(http.StatusInternalServerError, httpError{Error: err.Error()})
		return
	}
	a.sendFile(c, deployScriptName, content)
}

// sendFile responds with the content as a file download
func (*API) sendFile(c *gin.Context, filename string, content string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

// requestIDMiddleware generates a Gin middleware function that assigns a
// unique request ID to each incoming request.
//
// It generates a random hexadecimal string and sets it in the Gin context
// under the key "X-Request-ID".
// This ID can be used for tracking and logging purposes.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := generateRandomHexString(32)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(xRequestIDHeader, id)
		c.Header(xRequestIDHeader, id)
		c.Next()
	}
}

// ginContextLogger returns the slog.Logger from the given gin context,
// or, if it doesn't exist, creates a logger with request details included,
// and sets the logger in the context so the next call to ginContextLogger
// will return the new logger.
func ginContextLogger(c *gin.Context) *slog.Logger {
	if logger, ok := c.Get(string(loggerContextKey)); ok {
		if requestLogger, ok := logger.(*slog.Logger); ok {
			return requestLogger
		}
	}
	return setRequestLogger(c, slog.Default())
}

// setRequestLogger stores a logger derived from base, including request
// details, in the gin context
func setRequestLogger(c *gin.Context, base *slog.Logger) *slog.Logger {
	requestID, _ := c.Get(xRequestIDHeader)
	path := c.Request.URL.Path
	raw := c.Request.URL.RawQuery
	if raw != "" {
		path = path + "?" + raw
	}

	requestLogger := base.With(
		slog.Group(
			"request",
			"method", c.Request.Method,
			"path", path,
			"remote_addr", c.Request.RemoteAddr,
			"remote_ip", c.RemoteIP(),
			"user_agent", c.Request.UserAgent(),
			"referer", c.Request.Referer(),
		),
		slog.Any(xRequestIDHeader, requestID),
	)
	c.Set(string(loggerContextKey), requestLogger)
	return requestLogger
}

// ginLoggingMiddleware returns a Gin middleware function for logging HTTP requests.
//
// It logs the request method, path, remote address, user agent, referer, and the duration
// of the request. If there are any errors, it logs them as well.
func ginLoggingMiddleware(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := setRequestLogger(c, base)
		c.Next()
		latency := time.Since(start)

		var errs []error
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			errs = append(errs, e.Err)
		}
		if len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf(
					"%s %s finished with errors",
					c.Request.Method,
					c.Request.URL,
				),
				"duration", latency,
				tint.Err(errors.Join(errs...)),
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		} else {
			requestLogger.Info(
				fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
				"duration", latency,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
		}
	}
}

//nolint:gochecknoinits // gotta register the validators
func init() {
	structValidator.SetTagName("binding")
}
