package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/secrets"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type AuthorizationType string

const (
	AuthNone        AuthorizationType = "NONE"
	AuthBearerToken AuthorizationType = "BEARER_TOKEN"
	AuthBasic       AuthorizationType = "BASIC_AUTH"
	AuthAPIKey      AuthorizationType = "API_KEY"
)

// ParameterEntity is the source a webhook parameter reads from.
type ParameterEntity string

const (
	ParameterRecord ParameterEntity = "RECORD"
	ParameterUser   ParameterEntity = "USER"
	ParameterTenant ParameterEntity = "TENANT"
	ParameterCustom ParameterEntity = "CUSTOM"
)

// Parameter maps an attribute of a source onto a request parameter. CUSTOM parameters send
// Attribute verbatim.
type Parameter struct {
	Name      string          `json:"name"      validate:"required"`
	Entity    ParameterEntity `json:"entity"    validate:"required,oneof=RECORD USER TENANT CUSTOM"`
	Attribute string          `json:"attribute" validate:"required"`
}

// Credentials is the plaintext authorization material. It is only ever persisted sealed.
type Credentials struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	KeyName  string `json:"keyName,omitempty"`
	KeyValue string `json:"keyValue,omitempty"`
}

// Webhook calls an external endpoint with parameters taken from the record, its owner and tenant.
type Webhook struct {
	Name                   string            `json:"name"                             validate:"required,max=255"`
	Description            string            `json:"description,omitempty"`
	Method                 string            `json:"method"                           validate:"required,oneof=GET POST PUT"`
	RequestURL             string            `json:"requestUrl"                       validate:"required,url"`
	AuthorizationType      AuthorizationType `json:"authorizationType"                validate:"required,oneof=NONE BEARER_TOKEN BASIC_AUTH API_KEY"`
	AuthorizationParameter string            `json:"authorizationParameter,omitempty"`
	Credentials            *Credentials      `json:"credentials,omitempty"`
	Parameters             []Parameter       `json:"parameters"                       validate:"dive"`
}

func (a *Webhook) Type() models.ActionType {
	return models.ActionWebhook
}

func (a *Webhook) Validate() error {
	err := validateStruct(a.Type(), a)
	if err != nil {
		return err
	}

	if a.AuthorizationType != AuthNone && a.AuthorizationParameter == "" && a.Credentials == nil {
		return &InvalidActionError{ActionType: a.Type(), Field: "authorizationParameter", Message: "credentials are required for " + string(a.AuthorizationType)}
	}

	if a.Credentials != nil {
		return a.Credentials.validate(a.AuthorizationType)
	}

	return nil
}

func (c *Credentials) validate(authType AuthorizationType) error {
	var missing string

	switch authType {
	case AuthBearerToken:
		if c.Token == "" {
			missing = "token"
		}
	case AuthBasic:
		if c.Username == "" {
			missing = "username"
		}
	case AuthAPIKey:
		if c.KeyName == "" || c.KeyValue == "" {
			missing = "keyName and keyValue"
		}
	case AuthNone:
	}

	if missing != "" {
		return &InvalidActionError{ActionType: models.ActionWebhook, Field: "credentials", Message: missing + " is required"}
	}

	return nil
}

// Seal encrypts plaintext credentials into AuthorizationParameter and clears them.
func (a *Webhook) Seal(crypter secrets.Crypter) error {
	if a.Credentials == nil {
		return nil
	}

	if a.AuthorizationType == AuthNone {
		a.Credentials = nil

		return nil
	}

	plaintext, err := json.Marshal(a.Credentials)
	if err != nil {
		return fmt.Errorf("failed to encode webhook credentials: %w", err)
	}

	sealed, err := crypter.Encrypt(string(plaintext))
	if err != nil {
		return fmt.Errorf("failed to seal webhook credentials: %w", err)
	}

	a.AuthorizationParameter = sealed
	a.Credentials = nil

	return nil
}

func (a *Webhook) Apply(ctx context.Context, record models.Record, exec *Execution) (Effect, error) {
	params := a.resolveParameters(ctx, record, exec)

	req, err := a.buildRequest(ctx, params)
	if err != nil {
		return nil, executionError(a.Type(), exec, "failed to build request: %w", err)
	}

	err = a.authorize(req, exec)
	if err != nil {
		return nil, executionError(a.Type(), exec, "failed to authorize request: %w", err)
	}

	client := http.DefaultClient
	if exec.Env != nil && exec.HTTPClient != nil {
		client = exec.HTTPClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, executionError(a.Type(), exec, "webhook %s failed: %w", a.Name, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)

		err := resp.Body.Close()
		if err != nil {
			exec.logger().ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, executionError(a.Type(), exec, "webhook %s answered with status %d", a.Name, resp.StatusCode)
	}

	exec.logger().InfoContext(ctx, "webhook delivered",
		"workflow_id", exec.WorkflowID, "webhook", a.Name, "status", resp.StatusCode)

	return nil, nil
}

// resolveParameters builds the parameter set in declaration order, leaving out absent values.
func (a *Webhook) resolveParameters(ctx context.Context, record models.Record, exec *Execution) *orderedmap.OrderedMap[string, any] {
	params := orderedmap.New[string, any]()
	sources := &parameterSources{exec: exec, record: record}

	for _, p := range a.Parameters {
		value := parameterValue(sources.value(ctx, p))
		if isAbsent(value) {
			continue
		}

		params.Set(p.Name, value)
	}

	return params
}

func (a *Webhook) buildRequest(ctx context.Context, params *orderedmap.OrderedMap[string, any]) (*http.Request, error) {
	target, err := url.Parse(a.RequestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}

	if a.Method == http.MethodGet {
		target.RawQuery = appendQuery(target.RawQuery, params)

		return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	}

	body, err := params.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func appendQuery(rawQuery string, params *orderedmap.OrderedMap[string, any]) string {
	parts := make([]string, 0, params.Len()+1)
	if rawQuery != "" {
		parts = append(parts, rawQuery)
	}

	for pair := params.Oldest(); pair != nil; pair = pair.Next() {
		parts = append(parts, url.QueryEscape(pair.Key)+"="+url.QueryEscape(queryValue(pair.Value)))
	}

	return strings.Join(parts, "&")
}

func queryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}
}

func (a *Webhook) authorize(req *http.Request, exec *Execution) error {
	if a.AuthorizationType == AuthNone {
		return nil
	}

	creds, err := a.credentials(exec)
	if err != nil {
		return err
	}

	switch a.AuthorizationType {
	case AuthBearerToken:
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	case AuthBasic:
		req.SetBasicAuth(creds.Username, creds.Password)
	case AuthAPIKey:
		req.Header.Set(creds.KeyName, creds.KeyValue)
	case AuthNone:
	}

	return nil
}

func (a *Webhook) credentials(exec *Execution) (*Credentials, error) {
	if a.AuthorizationParameter == "" {
		return nil, fmt.Errorf("no credentials stored for %s", a.AuthorizationType)
	}

	if exec.Env == nil || exec.Crypter == nil {
		return nil, errors.New("no crypter configured")
	}

	plaintext, err := exec.Crypter.Decrypt(a.AuthorizationParameter)
	if err != nil {
		return nil, err
	}

	var creds Credentials

	err = json.Unmarshal([]byte(plaintext), &creds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	return &creds, nil
}

// parameterSources fetches the owner and tenant at most once per dispatch.
type parameterSources struct {
	exec   *Execution
	record models.Record

	owner        *models.User
	ownerFetched bool

	tenant        *models.Tenant
	tenantFetched bool
}

func (s *parameterSources) value(ctx context.Context, p Parameter) any {
	switch p.Entity {
	case ParameterRecord:
		value, err := s.exec.registry().Value(s.record, p.Attribute)
		if err != nil {
			s.exec.logger().WarnContext(ctx, "unknown webhook record attribute", "attribute", p.Attribute)

			return nil
		}

		return value
	case ParameterUser:
		owner := s.ownerUser(ctx)
		if owner == nil {
			return nil
		}

		return owner.Attribute(p.Attribute)
	case ParameterTenant:
		tenant := s.tenantDetails(ctx)
		if tenant == nil {
			return nil
		}

		return tenant.Attribute(p.Attribute)
	case ParameterCustom:
		return p.Attribute
	default:
		return nil
	}
}

func (s *parameterSources) ownerUser(ctx context.Context) *models.User {
	if s.ownerFetched {
		return s.owner
	}

	s.ownerFetched = true

	ownerID := s.record.GetOwnerID()
	if ownerID == 0 || s.exec.Env == nil || s.exec.Users == nil {
		return nil
	}

	user, err := s.exec.Users.GetUser(ctx, ownerID, s.exec.Token)
	if err != nil {
		s.exec.logger().WarnContext(ctx, "failed to resolve record owner for webhook", "user_id", ownerID, "error", err)

		return nil
	}

	s.owner = user

	return s.owner
}

func (s *parameterSources) tenantDetails(ctx context.Context) *models.Tenant {
	if s.tenantFetched {
		return s.tenant
	}

	s.tenantFetched = true

	if s.exec.Env == nil || s.exec.Tenants == nil {
		return nil
	}

	tenant, err := s.exec.Tenants.GetTenant(ctx, s.exec.Token)
	if err != nil {
		s.exec.logger().WarnContext(ctx, "failed to resolve tenant for webhook", "tenant_id", s.exec.TenantID, "error", err)

		return nil
	}

	s.tenant = tenant

	return s.tenant
}

// parameterValue flattens references to their display name, money to its amount and dates to text.
func parameterValue(value any) any {
	switch v := value.(type) {
	case models.IdName:
		return v.Name
	case []models.IdName:
		names := make([]string, 0, len(v))
		for _, ref := range v {
			if strings.TrimSpace(ref.Name) != "" {
				names = append(names, ref.Name)
			}
		}

		return names
	case models.Money:
		return v.Value
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return value
	}
}

func isAbsent(value any) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
