package eboekhouden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrMutationNotFound marks an id with no mutation behind it. The cache
// scanner counts these toward its consecutive-miss limit; every other error
// is a real failure.
var ErrMutationNotFound = errors.New("eboekhouden: mutation not found")

const (
	defaultBaseURL  = "https://api.e-boekhouden.nl"
	pageSize        = 500
	sessionLifetime = 55 * time.Minute

	// Safety ceilings for pagination; the API signals the end with a short
	// page, these only guard against an endpoint that never does.
	maxListOffset     = 10000
	maxMutationOffset = 50000
)

// Config carries the per-run API credentials. It is constructed once per
// migration run and passed explicitly; nothing reads credentials from a global.
type Config struct {
	APIURL   string
	APIToken string
	Source   string
}

type Client struct {
	baseURL   string
	apiToken  string
	source    string
	shortHTTP *http.Client
	longHTTP  *http.Client
	limiter   <-chan time.Time

	mu            sync.Mutex
	sessionToken  string
	sessionExpiry time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("eboekhouden api token is empty")
	}
	baseURL := strings.TrimSpace(cfg.APIURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "Boekhouden Backend"
	}
	rateLimitPerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("EBOEKHOUDEN_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiToken:  cfg.APIToken,
		source:    source,
		shortHTTP: &http.Client{Timeout: 30 * time.Second},
		longHTTP:  &http.Client{Timeout: 120 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type sessionRequest struct {
	AccessToken string `json:"accessToken"`
	Source      string `json:"source"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

// getSessionToken returns a cached session token, requesting a new one when
// the cached token is within its 55 minute lifetime budget.
func (c *Client) getSessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionToken != "" && time.Now().Before(c.sessionExpiry) {
		return c.sessionToken, nil
	}

	payload, err := json.Marshal(sessionRequest{AccessToken: c.apiToken, Source: c.source})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.shortHTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("eboekhouden session request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("eboekhouden session error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed sessionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", errors.New("eboekhouden session response has no token")
	}

	c.sessionToken = parsed.Token
	c.sessionExpiry = time.Now().Add(sessionLifetime)
	return c.sessionToken, nil
}

// ValidateSession performs one session round trip to prove the credentials
// work. The obtained token stays cached for subsequent calls.
func (c *Client) ValidateSession(ctx context.Context) error {
	_, err := c.getSessionToken(ctx)
	return err
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.sessionToken = ""
	c.sessionExpiry = time.Time{}
	c.mu.Unlock()
}

// get performs one authenticated GET. A 401 invalidates the cached session
// token and retries once with a fresh one.
func (c *Client) get(ctx context.Context, path string, params url.Values, long bool) (int, []byte, error) {
	retried := false
	for {
		<-c.limiter

		token, err := c.getSessionToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		endpoint := c.baseURL + path
		if len(params) > 0 {
			endpoint = endpoint + "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("Accept", "application/json")

		httpClient := c.shortHTTP
		if long {
			httpClient = c.longHTTP
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			c.invalidateSession()
			retried = true
			continue
		}
		return resp.StatusCode, body, nil
	}
}

type listResponse struct {
	Items []json.RawMessage `json:"items"`
}

// getList follows the API's offset pagination until a short page, an empty
// page, or the safety ceiling.
func (c *Client) getList(ctx context.Context, path string, params url.Values, maxOffset int) ([]json.RawMessage, error) {
	var all []json.RawMessage
	offset := 0
	for {
		pageParams := url.Values{}
		for k, v := range params {
			pageParams[k] = v
		}
		pageParams.Set("limit", strconv.Itoa(pageSize))
		pageParams.Set("offset", strconv.Itoa(offset))

		status, body, err := c.get(ctx, path, pageParams, true)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("eboekhouden api error %d on %s: %s", status, path, strings.TrimSpace(string(body)))
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("eboekhouden list response on %s: %w", path, err)
		}
		all = append(all, page.Items...)

		if len(page.Items) < pageSize {
			return all, nil
		}
		offset += len(page.Items)
		if offset > maxOffset {
			return all, fmt.Errorf("eboekhouden pagination safety limit reached on %s at offset %d", path, offset)
		}
	}
}

// FetchMutationDetail fetches one mutation with its line rows.
// Returns ErrMutationNotFound when the id has no mutation behind it.
func (c *Client) FetchMutationDetail(ctx context.Context, mutationId int) (*Mutation, error) {
	status, body, err := c.get(ctx, "/v1/mutation/"+strconv.Itoa(mutationId), nil, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, ErrMutationNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("eboekhouden api error %d fetching mutation %d: %s", status, mutationId, strings.TrimSpace(string(body)))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrMutationNotFound
	}
	return ParseMutation(body)
}

// FetchMutationsByType lists all mutation ids of one type, then fetches each
// id's detail so every returned mutation carries its rows. Ids that vanish
// between the list and the detail call are skipped.
func (c *Client) FetchMutationsByType(ctx context.Context, mutationType MutationType) ([]*Mutation, error) {
	params := url.Values{}
	params.Set("type", strconv.Itoa(int(mutationType)))
	items, err := c.getList(ctx, "/v1/mutation", params, maxMutationOffset)
	if err != nil {
		return nil, err
	}

	var mutations []*Mutation
	for _, item := range items {
		var summary struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(item, &summary); err != nil || summary.ID == nil {
			continue
		}
		detail, err := c.FetchMutationDetail(ctx, *summary.ID)
		if err != nil {
			if errors.Is(err, ErrMutationNotFound) {
				continue
			}
			return nil, err
		}
		mutations = append(mutations, detail)
	}
	return mutations, nil
}

func (c *Client) FetchLedgers(ctx context.Context) ([]*Ledger, error) {
	items, err := c.getList(ctx, "/v1/ledger", nil, maxListOffset)
	if err != nil {
		return nil, err
	}
	ledgers := make([]*Ledger, 0, len(items))
	for _, item := range items {
		var ledger Ledger
		if err := json.Unmarshal(item, &ledger); err != nil {
			return nil, err
		}
		ledgers = append(ledgers, &ledger)
	}
	return ledgers, nil
}

// FetchLedgerDetail fetches one ledger, including its category.
// (nil, nil) when the id is unknown.
func (c *Client) FetchLedgerDetail(ctx context.Context, ledgerId int) (*Ledger, error) {
	status, body, err := c.get(ctx, "/v1/ledger/"+strconv.Itoa(ledgerId), nil, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("eboekhouden api error %d fetching ledger %d: %s", status, ledgerId, strings.TrimSpace(string(body)))
	}
	var ledger Ledger
	if err := json.Unmarshal(body, &ledger); err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (c *Client) FetchRelations(ctx context.Context) ([]*Relation, error) {
	items, err := c.getList(ctx, "/v1/relation", nil, maxListOffset)
	if err != nil {
		return nil, err
	}
	relations := make([]*Relation, 0, len(items))
	for _, item := range items {
		var relation Relation
		if err := json.Unmarshal(item, &relation); err != nil {
			return nil, err
		}
		relations = append(relations, &relation)
	}
	return relations, nil
}

// FetchRelationDetail fetches one relation; (nil, nil) when the id is unknown.
func (c *Client) FetchRelationDetail(ctx context.Context, relationId int) (*Relation, error) {
	status, body, err := c.get(ctx, "/v1/relation/"+strconv.Itoa(relationId), nil, false)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("eboekhouden api error %d fetching relation %d: %s", status, relationId, strings.TrimSpace(string(body)))
	}
	var relation Relation
	if err := json.Unmarshal(body, &relation); err != nil {
		return nil, err
	}
	return &relation, nil
}

func (c *Client) FetchCostCenters(ctx context.Context) ([]*CostCenter, error) {
	items, err := c.getList(ctx, "/v1/costcenter", nil, maxListOffset)
	if err != nil {
		return nil, err
	}
	centers := make([]*CostCenter, 0, len(items))
	for _, item := range items {
		var center CostCenter
		if err := json.Unmarshal(item, &center); err != nil {
			return nil, err
		}
		centers = append(centers, &center)
	}
	return centers, nil
}

// IDRange is the probed span of mutation ids on the remote administration.
type IDRange struct {
	LowestId  int
	HighestId int
	Found     bool
}

var rangeProbePoints = []int{0, 1, 100, 1000, 5000, 7000, 8000, 9000, 10000, 15000, 20000}

func (c *Client) probe(ctx context.Context, mutationId int) (bool, error) {
	_, err := c.FetchMutationDetail(ctx, mutationId)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrMutationNotFound) {
		return false, nil
	}
	return false, err
}

// EstimateIDRange probes fixed test points to bound the remote id space, then
// refines both boundaries in steps of ten. The result is an estimate; the
// cache scanner's consecutive-miss limit is the real termination condition.
func (c *Client) EstimateIDRange(ctx context.Context) (IDRange, error) {
	lowest, highest := -1, -1
	for _, testId := range rangeProbePoints {
		found, err := c.probe(ctx, testId)
		if err != nil {
			return IDRange{}, err
		}
		if !found {
			continue
		}
		if lowest == -1 || testId < lowest {
			lowest = testId
		}
		if testId > highest {
			highest = testId
		}
	}
	if lowest == -1 {
		return IDRange{LowestId: 1, HighestId: 10000}, nil
	}

	for i := 1; i <= 20 && lowest > 0; i++ {
		testId := lowest - i*10
		if testId < 0 {
			break
		}
		found, err := c.probe(ctx, testId)
		if err != nil {
			return IDRange{}, err
		}
		if !found {
			break
		}
		lowest = testId
	}
	for i := 1; i <= 50; i++ {
		testId := highest + i*10
		found, err := c.probe(ctx, testId)
		if err != nil {
			return IDRange{}, err
		}
		if !found {
			break
		}
		highest = testId
	}

	return IDRange{LowestId: lowest, HighestId: highest, Found: true}, nil
}
