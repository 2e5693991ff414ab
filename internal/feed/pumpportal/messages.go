package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"solana-sniper/internal/domain"
)

const (
	methodSubscribeNewToken   = "subscribeNewToken"
	methodSubscribeTokenTrade = "subscribeTokenTrade"

	methodUnsubscribeTokenTrade = "unsubscribeTokenTrade"

	txCreate = "create"
	txBuy    = "buy"
	txSell   = "sell"

	maxMetadataBytes = 1 << 20
)

type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// event is a create or trade notification. Subscription acks carry only
// Message and failures only Errors.
type event struct {
	Signature    string  `json:"signature"`
	Mint         string  `json:"mint"`
	Trader       string  `json:"traderPublicKey"`
	TxType       string  `json:"txType"`
	SolAmount    float64 `json:"solAmount"`
	MarketCapSol float64 `json:"marketCapSol"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	URI          string  `json:"uri"`
	Pool         string  `json:"pool"`

	Message string `json:"message"`
	Errors  string `json:"errors"`
}

type tokenMetadata struct {
	Twitter  string `json:"twitter"`
	Telegram string `json:"telegram"`
	Website  string `json:"website"`
}

// fetchSocials reads the off-chain metadata document at uri.
func fetchSocials(ctx context.Context, client *http.Client, uri string) (domain.Socials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return domain.Socials{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.Socials{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Socials{}, fmt.Errorf("metadata http %d", resp.StatusCode)
	}

	var md tokenMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&md); err != nil {
		return domain.Socials{}, fmt.Errorf("decode metadata: %w", err)
	}

	return domain.Socials{
		Twitter:  strings.TrimSpace(md.Twitter) != "",
		Telegram: strings.TrimSpace(md.Telegram) != "",
		Website:  strings.TrimSpace(md.Website) != "",
	}, nil
}
