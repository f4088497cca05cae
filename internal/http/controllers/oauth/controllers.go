package oauth

import (
	"strings"

	svc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/security/dpop"
)

// Deps contains everything the /oauth controllers need.
type Deps struct {
	Services svc.Services
	Issuer   *jwtx.Issuer
	DPoP     *dpop.Validator

	// ExternalURL is the public base URL of this server, used for DPoP htu
	// checks and the discovery document.
	ExternalURL string
}

// Controllers aggregates the /oauth controllers.
type Controllers struct {
	Authorize  *AuthorizeController
	Token      *TokenController
	Introspect *IntrospectController
	Revoke     *RevokeController
	Device     *DeviceController
	PAR        *PARController
	Discovery  *DiscoveryController
}

func New(d Deps) *Controllers {
	base := strings.TrimRight(d.ExternalURL, "/")
	return &Controllers{
		Authorize:  &AuthorizeController{svc: d.Services},
		Token:      &TokenController{svc: d.Services, dpop: d.DPoP, base: base},
		Introspect: &IntrospectController{svc: d.Services},
		Revoke:     &RevokeController{svc: d.Services},
		Device:     &DeviceController{svc: d.Services},
		PAR:        &PARController{svc: d.Services},
		Discovery:  &DiscoveryController{svc: d.Services, issuer: d.Issuer, base: base},
	}
}
