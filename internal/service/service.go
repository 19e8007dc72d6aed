package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/identity-service/internal/apperror"
	"gitlab.com/dirk.krummacker/identity-service/internal/logging"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile"
	pkgmodel "gitlab.com/dirk.krummacker/identity-service/pkg/model"
)

// Identifier reconciles a submission with the stored contacts.
type Identifier interface {
	Identify(ctx context.Context, sub reconcile.Submission) (model.Trail, error)
}

// Service is the REST API of the identity service.
type Service struct {
	identifier Identifier
	logger     zerolog.Logger
	gatherer   prometheus.Gatherer
	ginLogging bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger that request-scoped loggers are derived from.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithGatherer exposes the metrics of gatherer on GET /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Service) {
		s.gatherer = gatherer
	}
}

// WithGinLogging turns the per-request log line on or off. It is on by default.
func WithGinLogging(enabled bool) Option {
	return func(s *Service) {
		s.ginLogging = enabled
	}
}

// New creates the service on top of identifier.
func New(identifier Identifier, opts ...Option) *Service {
	s := &Service{
		identifier: identifier,
		logger:     zerolog.Nop(),
		ginLogging: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func (s *Service) SetupHttpRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestID(s.logger))
	if s.ginLogging {
		router.Use(logging.RequestLogger())
	} else {
		s.logger.Info().Msg("Turning off HTTP request logging.")
	}

	router.POST("/api/identify", s.identify)
	router.POST("/identify", s.identify)

	swagger := router.Group("/swagger")
	swagger.GET("/doc", serveDoc)
	swagger.GET("/ui", serveUI)
	swagger.GET("/health", health)

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// identify reconciles the submitted email and phone number with the known contacts and responds
// with the consolidated contact of the identity they belong to.
//
// At least one of 'email' and 'phoneNumber' must be given. The phone number may be sent as a
// JSON string or a JSON number.
//
// REST API calls:
//
//	> curl -X POST -H "Content-Type: application/json" \
//	    -d '{"email":"lorraine@hillvalley.edu","phoneNumber":"123456"}' \
//	    "http://localhost:8080/api/identify"
//	> curl -X POST -d '{"phoneNumber":123456}' "http://localhost:8080/api/identify"
func (s *Service) identify(c *gin.Context) {
	ctx := c.Request.Context()
	logger := zerolog.Ctx(ctx)

	var request pkgmodel.IdentifyRequest
	if err := decodeStrict(c.Request, &request); err != nil {
		logger.Debug().Err(err).Msg("rejected request body")
		c.IndentedJSON(http.StatusBadRequest, pkgmodel.ErrorResponse{Error: "invalid JSON"})
		return
	}

	trail, err := s.identifier.Identify(ctx, reconcile.Submission{
		Email: request.Email,
		Phone: request.PhoneNumber.StringPtr(),
	})
	if err != nil {
		status := apperror.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("kind", apperror.KindOf(err).String()).Msg("identify failed")
		}
		c.IndentedJSON(status, pkgmodel.ErrorResponse{Error: apperror.PublicMessage(err)})
		return
	}

	c.IndentedJSON(http.StatusOK, pkgmodel.IdentifyResponse{Contact: toContactTrail(trail)})
}

// decodeStrict decodes exactly one JSON value from the request body into v and rejects fields v
// does not declare.
func decodeStrict(req *http.Request, v any) error {
	if req.Body == nil {
		return errors.New("missing request body")
	}
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after the JSON body")
	}
	return nil
}

// toContactTrail converts the trail into its wire form. Empty lists are sent as [] rather than
// null.
func toContactTrail(trail model.Trail) pkgmodel.ContactTrail {
	result := pkgmodel.ContactTrail{
		PrimaryContactId:    trail.PrimaryContactId,
		Emails:              trail.Emails,
		PhoneNumbers:        trail.PhoneNumbers,
		SecondaryContactIds: trail.SecondaryContactIds,
	}
	if result.Emails == nil {
		result.Emails = []string{}
	}
	if result.PhoneNumbers == nil {
		result.PhoneNumbers = []string{}
	}
	if result.SecondaryContactIds == nil {
		result.SecondaryContactIds = []int64{}
	}
	return result
}
