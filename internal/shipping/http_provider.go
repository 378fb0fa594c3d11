package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseSize = 1 << 20

// HTTPProviderConfig describes one carrier behind a RajaOngkir-compatible
// cost endpoint.
type HTTPProviderConfig struct {
	Code    string
	Name    string
	BaseURL string
	APIKey  string
}

// HTTPProvider quotes a carrier through the POST /cost endpoint.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
}

func NewHTTPProvider(cfg HTTPProviderConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPProvider{cfg: cfg, client: client}
}

func (p *HTTPProvider) Code() string { return p.cfg.Code }

func (p *HTTPProvider) DisplayName() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return strings.ToUpper(p.cfg.Code)
}

type costResponse struct {
	RajaOngkir struct {
		Status struct {
			Code        int    `json:"code"`
			Description string `json:"description"`
		} `json:"status"`
		Results []struct {
			Code  string `json:"code"`
			Name  string `json:"name"`
			Costs []struct {
				Service     string `json:"service"`
				Description string `json:"description"`
				Cost        []struct {
					Value int64  `json:"value"`
					ETD   string `json:"etd"`
				} `json:"cost"`
			} `json:"costs"`
		} `json:"results"`
	} `json:"rajaongkir"`
}

func (p *HTTPProvider) Quote(ctx context.Context, origin, destination string, weightGrams int) ([]ServiceRate, error) {
	form := url.Values{}
	form.Set("origin", origin)
	form.Set("destination", destination)
	form.Set("weight", strconv.Itoa(weightGrams))
	form.Set("courier", p.cfg.Code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/cost", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("shipping: %s: failed to create request: %w", p.cfg.Code, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCarrierUnavailable, p.cfg.Code, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("shipping: %s: failed to read response: %w", p.cfg.Code, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrCarrierUnavailable, p.cfg.Code, resp.StatusCode)
	}

	var payload costResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, p.cfg.Code, err)
	}

	if status := payload.RajaOngkir.Status; status.Code != 0 && status.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrCarrierUnavailable, p.cfg.Code, status.Description)
	}

	var rates []ServiceRate
	for _, result := range payload.RajaOngkir.Results {
		for _, c := range result.Costs {
			if len(c.Cost) == 0 {
				continue
			}
			rates = append(rates, ServiceRate{
				Service:       c.Service,
				Description:   c.Description,
				Cost:          c.Cost[0].Value,
				EstimatedDays: c.Cost[0].ETD,
			})
		}
	}

	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoService, p.cfg.Code)
	}

	return rates, nil
}
