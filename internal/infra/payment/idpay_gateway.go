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
	_ adapter.GatewayAdapter = (*IDPayGateway)(nil)
	_ adapter.StatusQuerier  = (*IDPayGateway)(nil)
)

const idpayAPI = "https://api.idpay.ir/v1.1/payment"

const idKeyAPIKey = "api_key"

// IDPayGateway implements the IDPay REST API. IDPay signs nothing on its
// webhooks, so authenticity comes from the documented re-query: every
// callback, success or not, is settled by calling the verify endpoint with
// the tenant's API key and comparing the reported amount.
type IDPayGateway struct {
	client *http.Client

	// Overridable in tests.
	apiBase string
}

func NewIDPayGateway() *IDPayGateway {
	return &IDPayGateway{client: &http.Client{Timeout: 30 * time.Second}}
}

func (g *IDPayGateway) Name() model.Gateway { return model.GatewayIDPay }

func (g *IDPayGateway) base() string {
	if g.apiBase != "" {
		return g.apiBase
	}
	return idpayAPI
}

type idpayCreateResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

type idpayVerifyResponse struct {
	Status  int    `json:"status"`
	TrackID int64  `json:"track_id"`
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

type idpayErrorResponse struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (g *IDPayGateway) Initiate(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.InitiationResult, error) {
	requestData := map[string]interface{}{
		"order_id": intent.ExternalReference,
		"amount":   intent.Amount,
		"callback": fmt.Sprintf("%s?order_id=%s", intent.Meta["callback_url"], intent.ExternalReference),
		"desc":     intent.Meta["description"],
	}

	body, status, err := g.post(ctx, g.base(), creds, requestData)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		var e idpayErrorResponse
		_ = json.Unmarshal(body, &e)
		return nil, fmt.Errorf("idpay error: code %d, message: %s", e.ErrorCode, e.ErrorMessage)
	}

	var response idpayCreateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	return &model.InitiationResult{
		RedirectURL:       response.Link,
		ClientToken:       response.ID,
		ExternalReference: intent.ExternalReference,
		ProviderReference: response.ID,
	}, nil
}

func (g *IDPayGateway) Reference(cb *model.Callback) (string, error) {
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
	return "", fmt.Errorf("idpay: callback carries no order id: %w", domain.ErrInvalidArgument)
}

// Confirm ignores the callback's claimed status entirely and settles the
// payment via the verify endpoint. The transaction id comes from the
// callback; everything trustworthy comes from the re-query.
func (g *IDPayGateway) Confirm(ctx context.Context, cb *model.Callback, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	txID := cb.Query["id"]
	if txID == "" && len(cb.Body) > 0 {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(cb.Body, &payload); err == nil {
			txID = payload.ID
		}
	}
	if txID == "" {
		return nil, fmt.Errorf("idpay: callback carries no transaction id: %w", domain.ErrInvalidArgument)
	}
	return g.verify(ctx, intent, creds, txID)
}

func (g *IDPayGateway) QueryStatus(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet) (*model.ConfirmationResult, error) {
	if intent.ProviderReference == nil || *intent.ProviderReference == "" {
		return &model.ConfirmationResult{
			ExternalReference: intent.ExternalReference,
			Outcome:           model.OutcomePending,
		}, nil
	}
	return g.verify(ctx, intent, creds, *intent.ProviderReference)
}

func (g *IDPayGateway) verify(ctx context.Context, intent *model.PaymentIntent, creds *model.CredentialSet, txID string) (*model.ConfirmationResult, error) {
	requestData := map[string]interface{}{
		"id":       txID,
		"order_id": intent.ExternalReference,
	}

	body, status, err := g.post(ctx, g.base()+"/verify", creds, requestData)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// Verify rejected the transaction outright; a forged or expired id
		// cannot be told apart from an authenticity problem, so treat it as one.
		return nil, domain.ErrAuthenticity
	}

	var response idpayVerifyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	// 100 = verified now, 101 = verified earlier.
	outcome := model.OutcomeFailed
	if response.Status == 100 || response.Status == 101 {
		outcome = model.OutcomeSucceeded
	}
	return &model.ConfirmationResult{
		ExternalReference: intent.ExternalReference,
		Outcome:           outcome,
		ProviderReference: strconv.FormatInt(response.TrackID, 10),
		ConfirmedAmount:   response.Amount,
		ConfirmedCurrency: intent.Currency,
	}, nil
}

func (g *IDPayGateway) post(ctx context.Context, url string, creds *model.CredentialSet, requestData map[string]interface{}) ([]byte, int, error) {
	apiKey := creds.Secret(idKeyAPIKey)
	if apiKey == "" {
		return nil, 0, fmt.Errorf("idpay: credential set for tenant %s lacks %s: %w", creds.TenantID, idKeyAPIKey, domain.ErrInvalidArgument)
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)
	if creds.Sandbox() {
		req.Header.Set("X-SANDBOX", "1")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
