package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// BankInfo is the canonical bank identity resolved from a bank code.
type BankInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// BankValidator resolves a bank code to a canonical bank identity.
// A nil result with a nil error means the code did not match any bank.
type BankValidator interface {
	Validate(ctx context.Context, code string) (*BankInfo, error)
}

const (
	bankCacheKeyPrefix = "bank:"
	bankCacheTTL       = 24 * time.Hour
	bankLookupTimeout  = 5 * time.Second
)

// BrasilAPIService validates destination banks against the BrasilAPI
// public bank directory. Successful lookups are cached in Redis; the
// directory is effectively static data. A nil Redis client degrades to
// uncached lookups.
type BrasilAPIService struct {
	client  *http.Client
	redis   *redis.Client
	baseURL string
}

func NewBrasilAPIService(redisClient *redis.Client) *BrasilAPIService {
	viper.SetDefault("brasilapi.base_url", "https://brasilapi.com.br/api")

	return &BrasilAPIService{
		client:  &http.Client{Timeout: bankLookupTimeout},
		redis:   redisClient,
		baseURL: viper.GetString("brasilapi.base_url"),
	}
}

// Validate resolves a bank code. Not-found returns (nil, nil); transport
// failures and timeouts return an error so the caller can distinguish
// an unavailable directory from an unknown code.
func (s *BrasilAPIService) Validate(ctx context.Context, code string) (*BankInfo, error) {
	if info := s.fromCache(ctx, code); info != nil {
		return info, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/banks/v1/%s", s.baseURL, code), nil)
	if err != nil {
		return nil, fmt.Errorf("building bank lookup request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[BRASILAPI] Bank lookup failed for code %s: %v", code, err)
		return nil, fmt.Errorf("bank lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("[BRASILAPI] Bank lookup returned status %d for code %s", resp.StatusCode, code)
		return nil, fmt.Errorf("bank lookup returned status %d", resp.StatusCode)
	}

	// BrasilAPI returns the code as a JSON number.
	var payload struct {
		Code json.Number `json:"code"`
		Name string      `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding bank lookup response: %w", err)
	}

	info := &BankInfo{Code: payload.Code.String(), Name: payload.Name}
	s.toCache(ctx, code, info)
	return info, nil
}

func (s *BrasilAPIService) fromCache(ctx context.Context, code string) *BankInfo {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, bankCacheKeyPrefix+code).Bytes()
	if err != nil {
		return nil
	}
	var info BankInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	return &info
}

func (s *BrasilAPIService) toCache(ctx context.Context, code string, info *BankInfo) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, bankCacheKeyPrefix+code, data, bankCacheTTL).Err(); err != nil {
		log.Printf("[BRASILAPI] Failed to cache bank %s: %v", code, err)
	}
}
