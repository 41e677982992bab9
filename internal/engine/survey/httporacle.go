// internal/engine/survey/httporacle.go
package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	stderrors "rooftrust-engine/internal/common/errors"
	internalhttp "rooftrust-engine/internal/common/http"
	"rooftrust-engine/internal/models"
)

// HTTPOracle resolves wind zones from an external mapping service exposing
// GET {baseURL}/zones?postcode=... and returning a FixingSpec document.
// Deployments without a mapping service run the RandomOracle stub instead.
type HTTPOracle struct {
	client  *internalhttp.Client
	baseURL string
}

func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPOracle{
		client:  internalhttp.NewClient(timeout),
		baseURL: baseURL,
	}
}

func (o *HTTPOracle) Lookup(ctx context.Context, postcode string) (models.FixingSpec, error) {
	endpoint := fmt.Sprintf("%s/zones?postcode=%s", o.baseURL, url.QueryEscape(postcode))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return models.FixingSpec{}, stderrors.NewOracleError(err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := o.client.DoWithContext(ctx, req)
	if err != nil {
		return models.FixingSpec{}, stderrors.NewOracleError(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.FixingSpec{}, stderrors.NewOracleError(
			fmt.Errorf("wind zone service returned %s", res.Status))
	}

	var spec models.FixingSpec
	if err := json.NewDecoder(res.Body).Decode(&spec); err != nil {
		return models.FixingSpec{}, stderrors.NewOracleError(err)
	}
	if spec.Zone == "" {
		return models.FixingSpec{}, stderrors.NewOracleError(
			fmt.Errorf("wind zone service returned no zone for %q", postcode))
	}
	return spec, nil
}
