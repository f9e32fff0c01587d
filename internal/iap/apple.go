package iap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-iap-wallet/internal/config"
	"github.com/tbourn/go-iap-wallet/internal/domain"
)

const (
	appleSandboxHost = "sandbox.itunes.apple.com"
	appleLiveHost    = "buy.itunes.apple.com"
	appleVerifyPath  = "/verifyReceipt"
)

// appleErrors is the App Store status table. It is used for logging only.
var appleErrors = map[int]string{
	21000: "The App Store could not read the JSON object you provided.",
	21002: "The data in the receipt-data property was malformed.",
	21003: "The receipt could not be authenticated.",
	21004: "The shared secret you provided does not match the shared secret on file for your account.",
	21005: "The receipt server is not currently available.",
	21006: "This receipt is valid but the subscription has expired. When this status code is returned to your server, the receipt data is also decoded and returned as part of the response.",
	21007: "This receipt is a sandbox receipt, but it was sent to the production service for verification.",
	21008: "This receipt is a production receipt, but it was sent to the sandbox service for verification.",
}

// AppleErrorMessage returns the App Store description of code.
func AppleErrorMessage(code int) string {
	if msg, ok := appleErrors[code]; ok {
		return msg
	}
	return "Unknown error."
}

// AppleVerifier calls the App Store verifyReceipt endpoint.
type AppleVerifier struct {
	URL          string
	SharedSecret string
	Timeout      time.Duration
	Client       *http.Client
}

// NewAppleVerifier derives the endpoint from the sandbox flag unless
// cfg.VerifyURL overrides it.
func NewAppleVerifier(cfg config.AppleConfig, timeout time.Duration) *AppleVerifier {
	url := cfg.VerifyURL
	if url == "" {
		host := appleLiveHost
		if cfg.Sandbox {
			host = appleSandboxHost
		}
		url = "https://" + host + appleVerifyPath
	}
	mode := "live"
	if cfg.Sandbox {
		mode = "sandbox"
	}
	log.Info().Str("mode", mode).Str("url", url).Msg("apple verifier configured")
	return &AppleVerifier{
		URL:          url,
		SharedSecret: cfg.SharedSecret,
		Timeout:      timeout,
		Client:       &http.Client{},
	}
}

type appleRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password,omitempty"`
}

type appleResponse struct {
	Status *int `json:"status"`
}

// Verify posts the receipt and maps status 0 to validated. Non-zero statuses
// are a normal answer, not an error.
func (v *AppleVerifier) Verify(ctx context.Context, r Receipt) (out *Outcome, err error) {
	defer func() { observe(domain.ServiceApple, out, err) }()

	if r.Service != domain.ServiceApple {
		return nil, &VerifyError{Service: domain.ServiceApple, Op: "request", Err: ErrInvalidReceipt}
	}
	body, _ := json.Marshal(appleRequest{ReceiptData: r.Apple, Password: v.SharedSecret})

	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &VerifyError{Service: domain.ServiceApple, Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Ctx(ctx).Info().Str("url", v.URL).Msg("validate purchase with apple")
	resp, err := v.client().Do(req)
	if err != nil {
		return nil, transportError(domain.ServiceApple, "post", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(domain.ServiceApple, "read", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &VerifyError{Service: domain.ServiceApple, Op: "post",
			Err: fmt.Errorf("%w: http %d", ErrTransport, resp.StatusCode)}
	}

	var ar appleResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, &VerifyError{Service: domain.ServiceApple, Op: "decode", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if ar.Status == nil {
		return nil, &VerifyError{Service: domain.ServiceApple, Op: "decode", Err: fmt.Errorf("%w: missing status", ErrMalformedResponse)}
	}
	log.Ctx(ctx).Debug().RawJSON("response", raw).Msg("apple validation response")

	out = &Outcome{Status: *ar.Status, RawResponse: string(raw)}
	if *ar.Status == 0 {
		out.Validated = true
		log.Ctx(ctx).Info().Msg("purchase validated successfully")
		return out, nil
	}
	out.Message = AppleErrorMessage(*ar.Status)
	log.Ctx(ctx).Error().Int("status", *ar.Status).Msg(out.Message)
	return out, nil
}

func (v *AppleVerifier) client() *http.Client {
	if v.Client != nil {
		return v.Client
	}
	return http.DefaultClient
}
