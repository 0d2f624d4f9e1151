package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/vitrine/internal/cache"
)

var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

// Address is the normalised result of a postal-code lookup.
type Address struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	IBGECode     string `json:"ibge_code"`
}

type viaCEPResponse struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Localidade  string `json:"localidade"`
	UF          string `json:"uf"`
	IBGE        string `json:"ibge"`
	Erro        any    `json:"erro"`
}

// CEPService resolves Brazilian postal codes through ViaCEP.
type CEPService struct {
	baseURL string
	client  *http.Client
	cache   *cache.QueryCache
	log     *zap.Logger
}

func NewCEPService(baseURL string, qc *cache.QueryCache, log *zap.Logger) *CEPService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CEPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 8 * time.Second},
		cache:   qc,
		log:     log,
	}
}

// NormalizePostalCode strips punctuation and checks the digit count.
func NormalizePostalCode(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r != '-' && r != '.' && r != ' ' {
			return "", ErrInvalidPostalCode
		}
	}
	if b.Len() != 8 {
		return "", ErrInvalidPostalCode
	}
	return b.String(), nil
}

// Lookup returns the address for a postal code, or nil when ViaCEP does not
// know it.
func (s *CEPService) Lookup(ctx context.Context, raw string) (*Address, error) {
	cep, err := NormalizePostalCode(raw)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(s.cache, "cep:"+cep, func() (*Address, error) {
		return s.fetch(ctx, cep)
	})
}

func (s *CEPService) fetch(ctx context.Context, cep string) (*Address, error) {
	url := fmt.Sprintf("%s/%s/json/", s.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("viacep request build: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return nil, ErrInvalidPostalCode
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("viacep unexpected status", zap.Int("status", resp.StatusCode), zap.String("cep", cep))
		return nil, fmt.Errorf("viacep: status %d", resp.StatusCode)
	}

	var payload viaCEPResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("viacep unmarshal: %w", err)
	}
	if notFound(payload.Erro) {
		return nil, nil
	}

	return &Address{
		PostalCode:   cep,
		Street:       payload.Logradouro,
		Complement:   payload.Complemento,
		Neighborhood: payload.Bairro,
		City:         payload.Localidade,
		State:        payload.UF,
		IBGECode:     payload.IBGE,
	}, nil
}

// ViaCEP has answered both {"erro": true} and {"erro": "true"}.
func notFound(v any) bool {
	switch e := v.(type) {
	case bool:
		return e
	case string:
		return strings.EqualFold(e, "true")
	}
	return false
}
