package iap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-iap-wallet/internal/config"
	"github.com/tbourn/go-iap-wallet/internal/domain"
)

// GoogleVerifier queries the Google Play Developer API purchases endpoints.
type GoogleVerifier struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	Client      *http.Client

	// now is replaceable in tests for subscription expiry checks.
	now func() time.Time
}

// NewGoogleVerifier builds a verifier from cfg.
func NewGoogleVerifier(cfg config.GoogleConfig, timeout time.Duration) *GoogleVerifier {
	log.Info().Str("base_url", cfg.BaseURL).Bool("token", cfg.AccessToken != "").Msg("google verifier configured")
	return &GoogleVerifier{
		BaseURL:     cfg.BaseURL,
		AccessToken: cfg.AccessToken,
		Timeout:     timeout,
		Client:      &http.Client{},
	}
}

// productPurchase is the subset of the ProductPurchase resource we read.
type productPurchase struct {
	PurchaseState *int   `json:"purchaseState"` // 0 purchased, 1 canceled, 2 pending
	OrderID       string `json:"orderId"`
}

// subscriptionPurchase is the subset of the SubscriptionPurchase resource we read.
type subscriptionPurchase struct {
	PaymentState     *int   `json:"paymentState"` // 0 pending, 1 received, 2 free trial, 3 deferred
	ExpiryTimeMillis string `json:"expiryTimeMillis"`
}

func (v *GoogleVerifier) endpoint(p GooglePurchase) string {
	kind := "products"
	if p.Subscription {
		kind = "subscriptions"
	}
	return fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/%s/%s/tokens/%s",
		v.BaseURL,
		url.PathEscape(p.PackageName),
		kind,
		url.PathEscape(p.ProductID),
		url.PathEscape(p.PurchaseToken),
	)
}

// Verify fetches the purchase resource. 400, 404 and 410 mean the token is
// unknown or gone and are a rejection; any other non-2xx is a transport error.
func (v *GoogleVerifier) Verify(ctx context.Context, r Receipt) (out *Outcome, err error) {
	defer func() { observe(domain.ServiceGoogle, out, err) }()

	if r.Service != domain.ServiceGoogle {
		return nil, &VerifyError{Service: domain.ServiceGoogle, Op: "request", Err: ErrInvalidReceipt}
	}
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	target := v.endpoint(r.Google)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &VerifyError{Service: domain.ServiceGoogle, Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if v.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+v.AccessToken)
	}

	log.Ctx(ctx).Info().
		Str("package", r.Google.PackageName).
		Str("product", r.Google.ProductID).
		Bool("subscription", r.Google.Subscription).
		Msg("validate purchase with google")
	resp, err := v.client().Do(req)
	if err != nil {
		return nil, transportError(domain.ServiceGoogle, "get", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(domain.ServiceGoogle, "read", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		out = &Outcome{
			Status:      resp.StatusCode,
			Message:     "purchase token rejected: " + http.StatusText(resp.StatusCode),
			RawResponse: rawOrEmptyObject(raw),
		}
		log.Ctx(ctx).Error().Int("http_status", resp.StatusCode).Msg(out.Message)
		return out, nil
	default:
		return nil, &VerifyError{Service: domain.ServiceGoogle, Op: "get",
			Err: fmt.Errorf("%w: http %d", ErrTransport, resp.StatusCode)}
	}

	if r.Google.Subscription {
		out, err = v.subscriptionOutcome(raw)
	} else {
		out, err = productOutcome(raw)
	}
	if err != nil {
		return nil, &VerifyError{Service: domain.ServiceGoogle, Op: "decode", Err: err}
	}
	if out.Validated {
		log.Ctx(ctx).Info().Msg("purchase validated successfully")
	} else {
		log.Ctx(ctx).Error().Int("state", out.Status).Msg(out.Message)
	}
	return out, nil
}

func productOutcome(raw []byte) (*Outcome, error) {
	var pp productPurchase
	if err := json.Unmarshal(raw, &pp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if pp.PurchaseState == nil {
		return nil, fmt.Errorf("%w: missing purchaseState", ErrMalformedResponse)
	}
	out := &Outcome{Status: *pp.PurchaseState, RawResponse: string(raw)}
	switch *pp.PurchaseState {
	case 0:
		out.Validated = true
	case 1:
		out.Message = "The purchase was canceled."
	case 2:
		out.Message = "The purchase is pending."
	default:
		out.Message = "Unknown error."
	}
	return out, nil
}

func (v *GoogleVerifier) subscriptionOutcome(raw []byte) (*Outcome, error) {
	var sp subscriptionPurchase
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	expiry, err := strconv.ParseInt(sp.ExpiryTimeMillis, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expiryTimeMillis %q", ErrMalformedResponse, sp.ExpiryTimeMillis)
	}
	out := &Outcome{Status: -1, RawResponse: string(raw)}
	if sp.PaymentState != nil {
		out.Status = *sp.PaymentState
	}
	now := time.Now
	if v.now != nil {
		now = v.now
	}
	switch {
	case expiry <= now().UnixMilli():
		out.Message = "The subscription has expired."
	case out.Status == 1 || out.Status == 2:
		out.Validated = true
	default:
		out.Message = "The subscription payment is not complete."
	}
	return out, nil
}

func rawOrEmptyObject(raw []byte) string {
	if len(raw) == 0 || !json.Valid(raw) {
		return "{}"
	}
	return string(raw)
}

func (v *GoogleVerifier) client() *http.Client {
	if v.Client != nil {
		return v.Client
	}
	return http.DefaultClient
}
