package syncpay

type authTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type authTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type CashInRequest struct {
	Amount      float64 `json:"amount"`
	ExternalID  string  `json:"external_id"`
	Description string  `json:"description,omitempty"`
}

type CashInResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Payload      string `json:"payload"`
	QRCodeBase64 string `json:"qrcode_base64"`
}

type CashOutRequest struct {
	Amount      float64 `json:"amount"`
	Key         string  `json:"key"`
	KeyType     string  `json:"key_type"`
	Description string  `json:"description,omitempty"`
	ExternalID  string  `json:"external_id"`
}

type CashOutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Message string `json:"message"`
}
