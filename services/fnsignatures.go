package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nethttp "net/http"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tokengate/cache"
	"github.com/ethpandaops/tokengate/evm"
	"github.com/ethpandaops/tokengate/metrics"
	"github.com/ethpandaops/tokengate/utils"
)

type FnSignatureLookupStatus uint8

var (
	FnSigStatusFailed  FnSignatureLookupStatus = 0
	FnSigStatusFound   FnSignatureLookupStatus = 1
	FnSigStatusUnknown FnSignatureLookupStatus = 2
)

type FnSignaturesConfig struct {
	LookupUrl        string
	LookupTimeout    time.Duration
	ConcurrencyLimit uint64
	CacheTtl         time.Duration
}

// FnSignaturesService resolves 4-byte selectors to their known text signatures.
type FnSignaturesService struct {
	config     FnSignaturesConfig
	cache      *cache.TieredCache
	httpClient *nethttp.Client
	logger     logrus.FieldLogger
}

type FnSignaturesLookup struct {
	Selector   evm.Selector
	Signatures []string
	Status     FnSignatureLookupStatus
}

type cachedFnSignatures struct {
	Signatures []string `json:"s"`
}

// NewFnSignaturesService creates the signature resolver. sigCache may be nil to disable caching.
func NewFnSignaturesService(config FnSignaturesConfig, sigCache *cache.TieredCache, logger logrus.FieldLogger) *FnSignaturesService {
	if config.ConcurrencyLimit == 0 {
		config.ConcurrencyLimit = 10
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = 10 * time.Second
	}
	if config.CacheTtl == 0 {
		config.CacheTtl = 24 * time.Hour
	}
	config.LookupUrl = strings.TrimRight(config.LookupUrl, "/")

	return &FnSignaturesService{
		config:     config,
		cache:      sigCache,
		httpClient: &nethttp.Client{Timeout: config.LookupTimeout},
		logger:     logger,
	}
}

// ResolveSignatures returns the union of all signatures known for the given selectors.
// Failed lookups contribute nothing, an empty set is a valid result.
func (fss *FnSignaturesService) ResolveSignatures(ctx context.Context, selectors []evm.Selector) evm.SignatureSet {
	signatures := evm.NewSignatureSet()
	for _, lookup := range fss.LookupSignatures(ctx, selectors) {
		for _, signature := range lookup.Signatures {
			signatures.Add(signature)
		}
	}
	return signatures
}

// LookupSignatures resolves every selector independently, with at most ConcurrencyLimit lookups in flight.
func (fss *FnSignaturesService) LookupSignatures(ctx context.Context, selectors []evm.Selector) map[evm.Selector]*FnSignaturesLookup {
	lookups := map[evm.Selector]*FnSignaturesLookup{}
	pendingLookups := make([]*FnSignaturesLookup, 0, len(selectors))

	for _, selector := range selectors {
		if lookups[selector] != nil {
			continue
		}
		lookup := &FnSignaturesLookup{
			Selector: selector,
		}
		lookups[selector] = lookup

		if fss.loadCached(ctx, lookup) {
			metrics.SignatureLookups.WithLabelValues("cached").Inc()
			continue
		}
		pendingLookups = append(pendingLookups, lookup)
	}

	semaphore := make(chan struct{}, fss.config.ConcurrencyLimit)
	wg := sync.WaitGroup{}
	for _, lookup := range pendingLookups {
		wg.Add(1)
		go func(lookup *FnSignaturesLookup) {
			defer wg.Done()
			defer utils.HandleSubroutinePanic("FnSignaturesService.LookupSignatures.func1")

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			err := fss.lookupSignature(ctx, lookup)
			if err != nil {
				fss.logger.Debugf("signature lookup for %v failed: %v", lookup.Selector, err)
				metrics.SignatureLookups.WithLabelValues("failed").Inc()
				return
			}

			if lookup.Status == FnSigStatusFound {
				metrics.SignatureLookups.WithLabelValues("found").Inc()
			} else {
				metrics.SignatureLookups.WithLabelValues("unknown").Inc()
			}
			fss.storeCached(ctx, lookup)
		}(lookup)
	}
	wg.Wait()

	return lookups
}

func (fss *FnSignaturesService) cacheKey(selector evm.Selector) string {
	return fmt.Sprintf("sig:%v", selector.Hex())
}

func (fss *FnSignaturesService) loadCached(ctx context.Context, lookup *FnSignaturesLookup) bool {
	if fss.cache == nil {
		return false
	}

	cached := cachedFnSignatures{}
	if err := fss.cache.Get(ctx, fss.cacheKey(lookup.Selector), &cached); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			fss.logger.Debugf("signature cache read for %v failed: %v", lookup.Selector, err)
		}
		return false
	}

	lookup.Signatures = cached.Signatures
	if len(cached.Signatures) > 0 {
		lookup.Status = FnSigStatusFound
	} else {
		lookup.Status = FnSigStatusUnknown
	}
	return true
}

func (fss *FnSignaturesService) storeCached(ctx context.Context, lookup *FnSignaturesLookup) {
	if fss.cache == nil {
		return
	}

	err := fss.cache.Set(ctx, fss.cacheKey(lookup.Selector), &cachedFnSignatures{Signatures: lookup.Signatures}, fss.config.CacheTtl)
	if err != nil {
		fss.logger.Debugf("signature cache write for %v failed: %v", lookup.Selector, err)
	}
}

// lookupSignature fetches the newline separated signature list of one selector.
func (fss *FnSignaturesService) lookupSignature(ctx context.Context, lookup *FnSignaturesLookup) error {
	url := fmt.Sprintf("%v/%v", fss.config.LookupUrl, lookup.Selector.Hex())

	req, err := nethttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := fss.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusNotFound {
		lookup.Status = FnSigStatusUnknown
		return nil
	}

	if resp.StatusCode != nethttp.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("url: %v, code: %v, error-response: %s", url, resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading signature response: %w", err)
	}

	signatures := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		signatures = append(signatures, line)
	}

	lookup.Signatures = signatures
	if len(signatures) == 0 {
		lookup.Status = FnSigStatusUnknown
	} else {
		lookup.Status = FnSigStatusFound
	}
	return nil
}
