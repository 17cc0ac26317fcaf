package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gematik/pca/pkg/ca"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// PcaAPI exposes terminal authentication and polymorphic retrieval over HTTP.
type PcaAPI struct {
	service *pca.Service
	sigPrK  jwk.Key
	sigPuK  jwk.Key
}

func NewPcaAPI(service *pca.Service) (*PcaAPI, error) {
	prk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("could not generate session key: %w", err)
	}
	sigPrK, err := jwk.FromRaw(prk)
	if err != nil {
		return nil, fmt.Errorf("could not create jwk from key: %w", err)
	}
	sigPuK, err := sigPrK.PublicKey()
	if err != nil {
		return nil, err
	}
	return &PcaAPI{
		service: service,
		sigPrK:  sigPrK,
		sigPuK:  sigPuK,
	}, nil
}

func (a *PcaAPI) MountRoutes(group *echo.Group) {
	group.GET("/cards", a.listCards)
	group.GET("/cards/:id/info", a.getInfo)
	group.POST("/cards/:id/sessions", a.authenticate)
	group.POST("/cards/:id/retrieve", a.retrieve, a.verifySessionToken)
}

type InfoResponse struct {
	Info  pca.Info `json:"info"`
	Flags []string `json:"flags"`
	// TLV is the base64 encoded PolymorphicInfo structure.
	TLV string `json:"tlv"`
}

type ExtensionRequest struct {
	OID  string `json:"oid"`
	Mask string `json:"mask"` // hex
}

type SessionRequest struct {
	Certificate     string             `json:"certificate"` // PEM
	Extensions      []ExtensionRequest `json:"extensions"`
	SecureMessaging bool               `json:"secure_messaging"`
}

type SessionResponse struct {
	SessionToken string `json:"session_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Role         string `json:"role"`
}

type RetrieveRequest struct {
	Mechanism string `json:"mechanism"`
}

type RetrieveResponse struct {
	Mechanism  string `json:"mechanism"`
	Disclosure string `json:"disclosure"`
}

func (a *PcaAPI) listCards(c echo.Context) error {
	ids, err := a.service.Cards().ListCards(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, ids)
}

func (a *PcaAPI) getInfo(c echo.Context) error {
	info, err := a.service.Info(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}
	tlv, err := info.MarshalTLV()
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, InfoResponse{
		Info:  info,
		Flags: info.Flags.Names(),
		TLV:   base64.StdEncoding.EncodeToString(tlv),
	})
}

func (a *PcaAPI) authenticate(c echo.Context) error {
	var body SessionRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	cert, err := ca.DecodeCertFromPEM([]byte(body.Certificate))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed terminal certificate")
	}
	asserted := make([]pca.AuthorizationExtension, 0, len(body.Extensions))
	for _, ext := range body.Extensions {
		oid, err := pca.ParseOID(ext.OID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		mask, err := hex.DecodeString(ext.Mask)
		if err != nil || len(mask) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed extension mask")
		}
		asserted = append(asserted, pca.AuthorizationExtension{OID: oid, Mask: mask})
	}

	ctx := c.Request().Context()
	session, err := a.service.Authenticate(ctx, c.Param("id"), pca.AuthenticationRequest{
		Certificate:     cert,
		Asserted:        asserted,
		SecureMessaging: body.SecureMessaging,
	})
	if err != nil {
		return httpError(c, err)
	}

	token, err := a.issueSessionToken(session)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, SessionResponse{
		SessionToken: token,
		TokenType:    "Bearer",
		ExpiresIn:    int(pca.SessionLifetime.Seconds()),
		Role:         session.Role().String(),
	})
}

func (a *PcaAPI) issueSessionToken(session *pca.Session) (string, error) {
	token, err := jwt.NewBuilder().
		JwtID(session.ID).
		Subject(session.CardID).
		IssuedAt(session.CreatedAt).
		Expiration(session.CreatedAt.Add(pca.SessionLifetime)).
		Build()
	if err != nil {
		return "", fmt.Errorf("unable to build session token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256, a.sigPrK))
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}
	return string(signed), nil
}

// verifySessionToken resolves the bearer token to the session id of the requested card.
func (a *PcaAPI) verifySessionToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "session token required")
		}
		token, err := jwt.Parse([]byte(raw),
			jwt.WithKey(jwa.ES256, a.sigPuK),
			jwt.WithValidate(true),
			jwt.WithAcceptableSkew(5*time.Second),
		)
		if err != nil {
			slog.Debug("session token rejected", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
		}
		if token.Subject() != c.Param("id") {
			return echo.NewHTTPError(http.StatusUnauthorized, "session token issued for another card")
		}
		c.Set("sessionID", token.JwtID())
		return next(c)
	}
}

func (a *PcaAPI) retrieve(c echo.Context) error {
	var body RetrieveRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	mechanism, err := pca.ParseMechanism(body.Mechanism)
	if err != nil {
		return httpError(c, err)
	}
	sessionID, _ := c.Get("sessionID").(string)

	disclosure, err := a.service.Retrieve(c.Request().Context(), sessionID, mechanism)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, RetrieveResponse{
		Mechanism:  mechanism.String(),
		Disclosure: base64.StdEncoding.EncodeToString(disclosure),
	})
}

// httpError maps service errors to responses. Authorization failures never carry a reason.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, polymorph.ErrPolicyDenied):
		return echo.NewHTTPError(http.StatusForbidden, polymorph.ErrPolicyDenied.Error())
	case errors.Is(err, polymorph.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, pca.ErrCardNotFound), errors.Is(err, pca.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		slog.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
