// SPDX-License-Identifier: ice License 1.0

package gapi

import (
	"context"
	"fmt"
	"net/url"
	stdlibtime "time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"

	appcfg "github.com/gravityflow/ganalytics/config"
	"github.com/gravityflow/ganalytics/log"
)

// New builds an API client authenticated with the given OAuth access token.
func New(applicationYAMLKey, accessToken string) Client {
	var cfg config
	appcfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	if cfg.AnalyticsBaseURL == "" {
		cfg.AnalyticsBaseURL = analyticsBaseURL
	}
	if cfg.AnalyticsAdminBaseURL == "" {
		cfg.AnalyticsAdminBaseURL = analyticsAdminBaseURL
	}
	if cfg.TagManagerBaseURL == "" {
		cfg.TagManagerBaseURL = tagManagerBaseURL
	}

	return &client{
		cfg:   cfg,
		token: accessToken,
		httpClient: req.C().
			SetJsonMarshal(json.Marshal).
			SetJsonUnmarshal(json.Unmarshal).
			SetTimeout(requestDeadline),
	}
}

// RefreshToken trades an expired access token for a fresh one via the vendor's auth proxy.
func (c *client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	var refreshed refreshResponse
	err := retry(ctx, func() error {
		resp, rErr := c.httpClient.R().
			SetContext(ctx).
			SetFormData(map[string]string{"refresh_token": url.QueryEscape(refreshToken)}).
			SetSuccessResult(&refreshed).
			Post(c.cfg.RefreshURL)
		if rErr != nil {
			return errors.Wrap(rErr, "refresh token request failed")
		}
		if resp.IsErrorState() {
			return errors.Errorf("refresh token request returned [%v]`%v`", resp.GetStatusCode(), resp.String())
		}
		if refreshed.Token.AccessToken == "" {
			return backoff.Permanent(errors.New("refresh token response carries no access token"))
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "permanently failed to refresh the access token")
	}
	c.token = refreshed.Token.AccessToken

	return &refreshed.Token, nil
}

func (c *client) AccountSummaries(ctx context.Context) ([]*AccountSummary, error) {
	var result struct {
		AccountSummaries []*AccountSummary `json:"accountSummaries"`
	}
	err := c.get(ctx, c.cfg.AnalyticsAdminBaseURL+"accountSummaries", &result)

	return result.AccountSummaries, err
}

func (c *client) DataStreams(ctx context.Context, property string) ([]*DataStream, error) {
	var result struct {
		DataStreams []*DataStream `json:"dataStreams"`
	}
	err := c.get(ctx, fmt.Sprintf("%v%v/dataStreams", c.cfg.AnalyticsAdminBaseURL, property), &result)

	return result.DataStreams, err
}

func (c *client) CreateAPISecret(ctx context.Context, dataStreamPath string) (*APISecret, error) {
	var secret APISecret
	requestURL := fmt.Sprintf("%v%v/measurementProtocolSecrets", c.cfg.AnalyticsAdminBaseURL, dataStreamPath)
	resp, err := c.buildHTTPRequest(ctx).
		SetBodyJsonMarshal(map[string]string{"displayName": apiSecretDisplayName}).
		SetSuccessResult(&secret).
		Post(requestURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create an api secret at `%v`", dataStreamPath)
	}
	if resp.IsErrorState() {
		return nil, wrapGoogleError(resp, "failed to create an api secret at `%v`", dataStreamPath)
	}

	return &secret, nil
}

func (c *client) APISecrets(ctx context.Context, dataStreamPath string) ([]*APISecret, error) {
	var result struct {
		MeasurementProtocolSecrets []*APISecret `json:"measurementProtocolSecrets"`
	}
	err := c.get(ctx, fmt.Sprintf("%v%v/measurementProtocolSecrets", c.cfg.AnalyticsAdminBaseURL, dataStreamPath), &result)

	return result.MeasurementProtocolSecrets, err
}

func (c *client) TagManagerAccounts(ctx context.Context) ([]*TagManagerAccount, error) {
	var result struct {
		Account []*TagManagerAccount `json:"account"`
	}
	err := c.get(ctx, c.cfg.TagManagerBaseURL+"accounts", &result)

	return result.Account, err
}

func (c *client) Containers(ctx context.Context, accountID string) ([]*Container, error) {
	var result struct {
		Container []*Container `json:"container"`
	}
	err := c.get(ctx, fmt.Sprintf("%vaccounts/%v/containers", c.cfg.TagManagerBaseURL, accountID), &result)

	return result.Container, err
}

func (c *client) Workspaces(ctx context.Context, containerPath string) ([]*Workspace, error) {
	var result struct {
		Workspace []*Workspace `json:"workspace"`
	}
	err := c.get(ctx, fmt.Sprintf("%v%v/workspaces", c.cfg.TagManagerBaseURL, containerPath), &result)

	return result.Workspace, err
}

func (c *client) Triggers(ctx context.Context, containerPath, workspace string) ([]*Trigger, error) {
	var result struct {
		Trigger []*Trigger `json:"trigger"`
	}
	err := c.get(ctx, fmt.Sprintf("%v%v/workspaces/%v/triggers", c.cfg.TagManagerBaseURL, containerPath, workspace), &result)

	return result.Trigger, err
}

func (c *client) Variables(ctx context.Context, containerPath, workspace string) ([]*Variable, error) {
	var result struct {
		Variable []*Variable `json:"variable"`
	}
	err := c.get(ctx, fmt.Sprintf("%v%v/workspaces/%v/variables", c.cfg.TagManagerBaseURL, containerPath, workspace), &result)

	return result.Variable, err
}

func (c *client) get(ctx context.Context, requestURL string, result any) error {
	resp, err := c.buildHTTPRequest(ctx).
		SetSuccessResult(result).
		Get(requestURL)
	if err != nil {
		return errors.Wrapf(err, "failed to call `%v`", requestURL)
	}
	if resp.IsErrorState() {
		return wrapGoogleError(resp, "failed to call `%v`", requestURL)
	}

	return nil
}

func (c *client) buildHTTPRequest(ctx context.Context) *req.Request {
	return c.httpClient.R().
		SetContext(ctx).
		SetBearerAuthToken(c.token).
		SetHeader("Accept", "application/json;ver=1.0")
}

// wrapGoogleError surfaces the message and reason google reports in its error envelope.
func wrapGoogleError(resp *req.Response, format string, args ...any) error {
	message := fmt.Sprintf("expected response code: 200. Returned response code: %v", resp.GetStatusCode())
	reason := "google_analytics_api_error"
	var body googleErrorBody
	if uErr := json.Unmarshal([]byte(resp.String()), &body); uErr == nil && body.Error.Message != "" {
		message = body.Error.Message
		if len(body.Error.Errors) > 0 && body.Error.Errors[0].Reason != "" {
			reason = body.Error.Errors[0].Reason
		}
	}

	return errors.Wrapf(ErrGoogleAPI, format+": [%v]%v", append(args, reason, message)...)
}

func retry(ctx context.Context, op func() error) error {
	//nolint:wrapcheck // No need, its just a proxy.
	return backoff.RetryNotify(
		op,
		//nolint:gomnd // Because those are static configs.
		backoff.WithContext(&backoff.ExponentialBackOff{
			InitialInterval:     100 * stdlibtime.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2.5,
			MaxInterval:         stdlibtime.Second,
			MaxElapsedTime:      requestDeadline,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}, ctx),
		func(e error, next stdlibtime.Duration) {
			log.Error(errors.Wrapf(e, "gapi call failed. retrying in %v... ", next))
		})
}
