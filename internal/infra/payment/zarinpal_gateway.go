package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"saas-payment-core/internal/domain"
	"saas-payment-core/internal/domain/model"
	"saas-payment-core/internal/domain/ports/adapter"
)

var (
	_ adapter.GatewayAdapter = (*ZarinPalGateway)(nil)
	_ adapter.StatusQuerier  = (*ZarinPalGateway)(nil)
)

const (
	zarinpalLiveAPI    = "https://payment.zarinpal.com/pg/v4/payment"
	zarinpalSandboxAPI = "https://sandbox.zarinpal.com/pg/v4/payment"
	zarinpalLivePay    = "https://payment.zarinpal.com/pg/StartPay/"
	zarinpalSandboxPay = "https://sandbox.zarinpal.com/pg/StartPay/"
)

// Credential keys expected in a tenant's CredentialSet for this gateway.
const (
	zpKeyMerchantID    = "merchant_id"
	zpKeyWebhookSecret = "webhook_secret"
)

// ZarinPalGateway talks to ZarinPal's v4 REST API. It is stateless: every
// call carries the tenant's credentials, so one instance serves all tenants.
//
// Two confirmation paths exist. The hosted-page redirect carries Authority and
// Status but nothing trustworthy, so every redirect is settled by a
// verify.json re-query against the tenant's merchant id and the expected
// amount. Webhook deliveries carry an HMAC signature over the documented
// canonical string and are checked against the tenant's webhook secret.
type ZarinPalGateway struct {
	client *http.Client

	// Overridable in tests; empty means the live/sandbox defaults per mode.
	apiBase string
	payBase string
}

func NewZarinPalGateway() *ZarinPalGateway {
	return &ZarinPalGateway{client: &http.Client{Timeout: 30 * time.Second}}
}

func (g *ZarinPalGateway) Name() model.Gateway { return model.GatewayZarinPal }

func (g *ZarinPalGateway) bases(creds *model.CredentialSet) (api, pay string) {
	if g.apiBase != "" {
		return g.apiBase, g.payBase
	}
	if creds.Sandbox() {
		return zarinpalSandboxAPI, zarinpalSandboxPay
	}
	return zarinpalLiveAPI, zarinpalLivePay
}

type zarinpalRequestResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		Authority string `json:"authority"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

type zarinpalVerifyResponse struct {
	Data struct {
		Code    int    `json:"code"`
		RefID   int64  `json:"ref_id"`
		CardPan string `json:"card_pan"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

func (g *ZarinPalGateway) Initiate(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
	merchantID := creds.Secret(zpKeyMerchantID)
	if merchantID == "" {
		return nil, fmt.Errorf("zarinpal: credential set for tenant %s lacks %s: %w", creds.TenantID, zpKeyMerchantID, domain.ErrInvalidArgument)
	}

	// The provider echoes nothing of ours back in the redirect, so the order
	// id rides on the callback URL it will redirect the payer to.
	callbackURL := fmt.Sprintf("%s?order_id=%s", intent.Meta["callback_url"], intent.ExternalReference)

	requestData := map[string]interface{}{
		"merchant_id":  merchantID,
		"amount":       intent.Amount,
		"callback_url": callbackURL,
		"description":  intent.Meta["description"],
		"metadata":     map[string]interface{}{"order_id": intent.ExternalReference},
	}

	api, pay := g.bases(creds)
	var response zarinpalRequestResponse
	if err := g.post(ctx, api+"/request.json", requestData, &response); err != nil {
		return nil, err
	}

	if response.Data.Code != 100 {
		return nil, fmt.Errorf("zarinpal error: code %d, message: %s", response.Data.Code, response.Data.Message)
	}
	if len(response.Errors) > 0 {
		errorBytes, _ := json.Marshal(response.Errors)
		return nil, fmt.Errorf("zarinpal errors: %s", string(errorBytes))
	}

	return &model.InitiationResult{
		RedirectURL:       pay + response.Data.Authority,
		ExternalReference: intent.ExternalReference,
		ProviderReference: response.Data.Authority,
	}, nil
}

// Reference pulls the order id out of a callback without trusting anything
// else: redirects carry it in the query we registered, webhooks in the body.
func (g *ZarinPalGateway) Reference(cb *model.Callback) (string, error) {
	if ref := cb.Query["order_id"]; ref != "" {
		return ref, nil
	}
	if len(cb.Body) > 0 {
		var payload struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(cb.Body, &payload); err == nil && payload.OrderID != "" {
			return payload.OrderID, nil
		}
	}
	return "", fmt.Errorf("zarinpal: callback carries no order id: %w", domain.ErrInvalidArgument)
}

func (g *ZarinPalGateway) Confirm(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	if sig := cb.Headers["X-Zarinpal-Signature"]; sig != "" {
		return g.confirmWebhook(cb, intent, creds, sig)
	}
	return g.confirmRedirect(ctx, cb, intent, creds)
}

// confirmRedirect handles the payer returning from the hosted page. The
// redirect itself proves nothing either way: its query params are forgeable by
// anyone who knows the order id, so verify.json is the only word on whether
// money moved.
func (g *ZarinPalGateway) confirmRedirect(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	authority := cb.Query["Authority"]
	if authority == "" {
		return nil, fmt.Errorf("zarinpal: redirect lacks Authority: %w", domain.ErrInvalidArgument)
	}

	res, err := g.verify(ctx, intent, creds, authority)
	if err != nil {
		return nil, err
	}
	if res.Outcome != model.OutcomeSucceeded && cb.Query["Status"] != "OK" {
		// Not settled and the payer came back cancelled. The cancellation claim
		// is unauthenticated and may race a payment that did go through, so the
		// intent stays pending; the signed webhook or the sweeper delivers the
		// terminal word.
		res.Outcome = model.OutcomePending
	}
	return res, nil
}

// confirmWebhook authenticates a server-to-server delivery via the HMAC
// scheme. A bad signature is an authenticity failure, not a payment failure.
func (g *ZarinPalGateway) confirmWebhook(cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet, signature string) (*model.ConfirmationResult, error) {
	secret := creds.Secret(zpKeyWebhookSecret)
	if secret == "" {
		return nil, fmt.Errorf("zarinpal: credential set for tenant %s lacks %s: %w", creds.TenantID, zpKeyWebhookSecret, domain.ErrInvalidArgument)
	}

	var payload struct {
		Amount    string `json:"amount"`
		Authority string `json:"authority"`
		Status    string `json:"status"`
		RefID     int64  `json:"ref_id"`
	}
	if err := json.Unmarshal(cb.Body, &payload); err != nil {
		return nil, fmt.Errorf("zarinpal: decode webhook body: %w", domain.ErrInvalidArgument)
	}

	data := map[string]string{
		"amount":    payload.Amount,
		"authority": payload.Authority,
		"status":    payload.Status,
	}
	if !verifyZarinPalWebhookSignature(secret, data, signature) {
		return nil, domain.ErrAuthenticity
	}

	amount, err := strconv.ParseInt(payload.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("zarinpal: webhook amount %q: %w", payload.Amount, domain.ErrInvalidArgument)
	}

	outcome := model.OutcomeFailed
	if payload.Status == "OK" || payload.Status == "100" {
		outcome = model.OutcomeSucceeded
	}
	return &model.ConfirmationResult{
		ExternalReference: intent.ExternalReference,
		Outcome:           outcome,
		ProviderReference: payload.Authority,
		ConfirmedAmount:   amount,
		ConfirmedCurrency: "IRR",
	}, nil
}

// QueryStatus re-queries the provider for intents whose callback never
// arrived. Requires the authority captured at initiation.
func (g *ZarinPalGateway) QueryStatus(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	if intent.ProviderReference == nil || *intent.ProviderReference == "" {
		return &model.ConfirmationResult{
			ExternalReference: intent.ExternalReference,
			Outcome:           model.OutcomePending,
		}, nil
	}
	return g.verify(ctx, intent, creds, *intent.ProviderReference)
}

func (g *ZarinPalGateway) verify(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet, authority string) (*model.ConfirmationResult, error) {
	merchantID := creds.Secret(zpKeyMerchantID)
	if merchantID == "" {
		return nil, fmt.Errorf("zarinpal: credential set for tenant %s lacks %s: %w", creds.TenantID, zpKeyMerchantID, domain.ErrInvalidArgument)
	}

	requestData := map[string]interface{}{
		"merchant_id": merchantID,
		"amount":      intent.Amount,
		"authority":   authority,
	}

	api, _ := g.bases(creds)
	var response zarinpalVerifyResponse
	if err := g.post(ctx, api+"/verify.json", requestData, &response); err != nil {
		return nil, err
	}

	// 100 = verified now, 101 = verified earlier. Anything else (including an
	// amount the provider rejects) is a failed payment, not a transport error.
	if response.Data.Code != 100 && response.Data.Code != 101 {
		return &model.ConfirmationResult{
			ExternalReference: intent.ExternalReference,
			Outcome:           model.OutcomeFailed,
			ProviderReference: authority,
		}, nil
	}

	return &model.ConfirmationResult{
		ExternalReference: intent.ExternalReference,
		Outcome:           model.OutcomeSucceeded,
		ProviderReference: strconv.FormatInt(response.Data.RefID, 10),
		ConfirmedAmount:   intent.Amount,
		ConfirmedCurrency: intent.Currency,
	}, nil
}

func (g *ZarinPalGateway) post(ctx context.Context, url string, requestData map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}
