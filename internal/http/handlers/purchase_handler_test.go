package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tbourn/go-iap-wallet/internal/domain"
	"github.com/tbourn/go-iap-wallet/internal/iap"
	"github.com/tbourn/go-iap-wallet/internal/services"
)

func TestValidateApple_StoresAndCaches(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "apple-receipt"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[services.ValidationResult](t, w)
	if res.ValidateState != domain.ValidateStateValidated || res.Status != domain.StatusPending || res.Cached {
		t.Fatalf("unexpected first result: %+v", res)
	}
	if res.ReceiptHash != iap.AppleReceipt("apple-receipt").Hash() {
		t.Fatalf("hash mismatch: %s", res.ReceiptHash)
	}

	w = e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "apple-receipt"})
	if res2 := decode[services.ValidationResult](t, w); !res2.Cached {
		t.Fatalf("second call should be cached: %+v", res2)
	}
	if n := atomic.LoadInt32(&e.apple.calls); n != 1 {
		t.Fatalf("apple calls=%d", n)
	}
}

func TestValidateApple_BadBody(t *testing.T) {
	e := newTestEnv(t)
	expectError(t, e.do(t, http.MethodPost, "/iap/apple/validate", map[string]string{}), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "   "}), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestValidateApple_StorefrontErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"timeout", &iap.VerifyError{Service: domain.ServiceApple, Op: "verify", Err: iap.ErrTimeout}, http.StatusGatewayTimeout, ErrCodeVerificationTimeout},
		{"transport", &iap.VerifyError{Service: domain.ServiceApple, Op: "verify", Err: iap.ErrTransport}, http.StatusBadGateway, ErrCodeVerificationUnavailable},
		{"malformed", iap.ErrMalformedResponse, http.StatusBadGateway, ErrCodeVerificationUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.apple.err = tc.err
			w := e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "r"})
			expectError(t, w, tc.status, tc.code)

			// Nothing persisted on storefront failure.
			w = e.do(t, http.MethodGet, "/iap/receipts/"+iap.AppleReceipt("r").Hash(), nil)
			expectError(t, w, http.StatusNotFound, ErrCodeReceiptNotFound)
		})
	}
}

func TestValidateGoogle_RoutesToGoogleVerifier(t *testing.T) {
	e := newTestEnv(t)
	body := GoogleValidateRequest{PackageName: "com.example", ProductID: "gems_100", PurchaseToken: "tok"}
	w := e.do(t, http.MethodPost, "/iap/google/validate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[services.ValidationResult](t, w)
	if res.Service != domain.ServiceGoogle {
		t.Fatalf("service=%s", res.Service)
	}
	if atomic.LoadInt32(&e.google.calls) != 1 || atomic.LoadInt32(&e.apple.calls) != 0 {
		t.Fatalf("calls apple=%d google=%d", e.apple.calls, e.google.calls)
	}

	expectError(t, e.do(t, http.MethodPost, "/iap/google/validate", GoogleValidateRequest{PackageName: "com.example"}),
		http.StatusBadRequest, ErrCodeBadRequest)
}

func TestUpdateStatus_And_GetReceipt(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "r1"})

	w := e.do(t, http.MethodPut, "/iap/status", UpdateStatusRequest{
		ReceiptRef: ReceiptRef{Service: "apple", Receipt: "r1"},
		Status:     "CANCELED",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	hash := iap.AppleReceipt("r1").Hash()
	w = e.do(t, http.MethodGet, "/iap/receipts/"+strings.ToUpper(hash), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if rec := decode[domain.Receipt](t, w); rec.Status != domain.StatusCanceled || rec.Receipt != "r1" {
		t.Fatalf("unexpected receipt: %+v", rec)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "r1"})

	expectError(t, e.do(t, http.MethodPut, "/iap/status", UpdateStatusRequest{
		ReceiptRef: ReceiptRef{Service: "apple", Receipt: "r1"}, Status: "refunded",
	}), http.StatusBadRequest, ErrCodeInvalidStatus)

	expectError(t, e.do(t, http.MethodPut, "/iap/status", UpdateStatusRequest{
		ReceiptRef: ReceiptRef{Service: "amazon", Receipt: "r1"}, Status: "handled",
	}), http.StatusBadRequest, ErrCodeInvalidReceipt)

	expectError(t, e.do(t, http.MethodPut, "/iap/status", UpdateStatusRequest{
		ReceiptRef: ReceiptRef{Service: "apple", Receipt: "never-seen"}, Status: "handled",
	}), http.StatusNotFound, ErrCodeReceiptNotFound)

	expectError(t, e.do(t, http.MethodPut, "/iap/status", map[string]string{"service": "apple"}),
		http.StatusBadRequest, ErrCodeBadRequest)
}

func TestGetReceipt_BadHash(t *testing.T) {
	e := newTestEnv(t)
	expectError(t, e.do(t, http.MethodGet, "/iap/receipts/not-a-hash", nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestRedeem_CreditsOnceThenConflicts(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "paid"})

	req := RedeemRequest{ReceiptRef: ReceiptRef{Service: "apple", Receipt: "paid"}, Wallet: "Gems", Price: 199, Value: 100}
	w := e.do(t, http.MethodPost, "/iap/redeem", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[RedeemResponse](t, w)
	if resp.Balance != 100 || resp.UserID != "user1" || resp.ReceiptHash != iap.AppleReceipt("paid").Hash() {
		t.Fatalf("unexpected redeem response: %+v", resp)
	}

	expectError(t, e.do(t, http.MethodPost, "/iap/redeem", req), http.StatusConflict, ErrCodeReceiptAlreadyHandled)

	w = e.do(t, http.MethodGet, "/wallets/gems/balance", nil)
	if b := decode[BalanceResponse](t, w); b.Balance != 100 {
		t.Fatalf("balance=%d", b.Balance)
	}
}

func TestRedeem_Rejections(t *testing.T) {
	e := newTestEnv(t)
	e.apple.out = &iap.Outcome{Validated: false, Status: 21003, RawResponse: `{"status":21003}`}
	e.do(t, http.MethodPost, "/iap/apple/validate", AppleValidateRequest{Receipt: "bad"})

	cases := []struct {
		req    RedeemRequest
		status int
		code   string
	}{
		{RedeemRequest{ReceiptRef: ReceiptRef{Service: "apple", Receipt: "bad"}, Wallet: "gems", Value: 10}, http.StatusConflict, ErrCodeReceiptNotValidated},
		{RedeemRequest{ReceiptRef: ReceiptRef{Service: "apple", Receipt: "missing"}, Wallet: "gems", Value: 10}, http.StatusNotFound, ErrCodeReceiptNotFound},
		{RedeemRequest{ReceiptRef: ReceiptRef{Service: "apple", Receipt: "bad"}, Wallet: "rubies", Value: 10}, http.StatusNotFound, ErrCodeWalletNotFound},
		{RedeemRequest{ReceiptRef: ReceiptRef{Service: "apple", Receipt: ""}, Wallet: "gems", Value: 10}, http.StatusBadRequest, ErrCodeInvalidReceipt},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			expectError(t, e.do(t, http.MethodPost, "/iap/redeem", tc.req), tc.status, tc.code)
		})
	}
}

func TestReceiptRef_ToReceipt(t *testing.T) {
	r := ReceiptRef{Service: " Google ", PackageName: "p", ProductID: "x", PurchaseToken: "t", Subscription: true}.toReceipt()
	if r.Service != domain.ServiceGoogle || r.Google.PurchaseToken != "t" || !r.Google.Subscription {
		t.Fatalf("unexpected google receipt: %+v", r)
	}
	r = ReceiptRef{Service: "apple", Receipt: "data"}.toReceipt()
	if r.Service != domain.ServiceApple || r.Apple != "data" {
		t.Fatalf("unexpected apple receipt: %+v", r)
	}
	if err := (ReceiptRef{Service: "amazon"}).toReceipt().Validate(); err == nil {
		t.Fatalf("unknown service should not validate")
	}
}
