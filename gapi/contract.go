// SPDX-License-Identifier: ice License 1.0

package gapi

import (
	"context"
	stdlibtime "time"

	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
)

// Public API.

type (
	// Client is the account-linking surface of the Google Analytics admin and Tag Manager APIs.
	Client interface {
		RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
		AccountSummaries(ctx context.Context) ([]*AccountSummary, error)
		DataStreams(ctx context.Context, property string) ([]*DataStream, error)
		CreateAPISecret(ctx context.Context, dataStreamPath string) (*APISecret, error)
		APISecrets(ctx context.Context, dataStreamPath string) ([]*APISecret, error)
		TagManagerAccounts(ctx context.Context) ([]*TagManagerAccount, error)
		Containers(ctx context.Context, accountID string) ([]*Container, error)
		Workspaces(ctx context.Context, containerPath string) ([]*Workspace, error)
		Triggers(ctx context.Context, containerPath, workspace string) ([]*Trigger, error)
		Variables(ctx context.Context, containerPath, workspace string) ([]*Variable, error)
	}
	Token struct {
		AccessToken  string `json:"access_token"`  //nolint:tagliatelle // It's google API.
		RefreshToken string `json:"refresh_token"` //nolint:tagliatelle // It's google API.
	}
	AccountSummary struct {
		Account           string             `json:"account"`
		DisplayName       string             `json:"displayName"`
		PropertySummaries []*PropertySummary `json:"propertySummaries"`
	}
	PropertySummary struct {
		Property    string `json:"property"`
		DisplayName string `json:"displayName"`
	}
	DataStream struct {
		WebStreamData *struct {
			MeasurementID string `json:"measurementId"`
			DefaultURI    string `json:"defaultUri"`
		} `json:"webStreamData,omitempty"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	APISecret struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		SecretValue string `json:"secretValue"`
	}
	TagManagerAccount struct {
		AccountID string `json:"accountId"`
		Name      string `json:"name"`
		Path      string `json:"path"`
	}
	Container struct {
		ContainerID string `json:"containerId"`
		Name        string `json:"name"`
		Path        string `json:"path"`
		PublicID    string `json:"publicId"`
	}
	Workspace struct {
		WorkspaceID string `json:"workspaceId"`
		Name        string `json:"name"`
		Path        string `json:"path"`
	}
	Trigger struct {
		TriggerID string `json:"triggerId"`
		Name      string `json:"name"`
		Type      string `json:"type"`
	}
	Variable struct {
		VariableID string `json:"variableId"`
		Name       string `json:"name"`
		Type       string `json:"type"`
	}
)

var (
	ErrGoogleAPI = errors.New("google API call failed")
)

// Private API.

type (
	client struct {
		httpClient *req.Client
		cfg        config
		token      string
	}
	config struct {
		RefreshURL            string `yaml:"refreshUrl"`
		AnalyticsBaseURL      string `yaml:"analyticsBaseUrl"`
		AnalyticsAdminBaseURL string `yaml:"analyticsAdminBaseUrl"`
		TagManagerBaseURL     string `yaml:"tagManagerBaseUrl"`
	}
	googleErrorBody struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	refreshResponse struct {
		Token Token `json:"token"`
	}
)

const (
	analyticsBaseURL      = "https://www.googleapis.com/analytics/v3/"
	analyticsAdminBaseURL = "https://analyticsadmin.googleapis.com/v1beta/"
	tagManagerBaseURL     = "https://www.googleapis.com/tagmanager/v2/"

	apiSecretDisplayName = "GravityFormsSecret"

	requestDeadline = 30 * stdlibtime.Second
)
