package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"google.golang.org/genai"
)

func isolateKeySources(t *testing.T) {
	t.Helper()
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
}

func TestGetAPIKeyFromEnv(t *testing.T) {
	isolateKeySources(t)
	const testKey = "test-api-key-12345"
	t.Setenv("GEMINI_API_KEY", testKey)

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != testKey {
		t.Errorf("expected key %q, got %q", testKey, key)
	}
}

func TestGetAPIKeyPrefersAPIKey(t *testing.T) {
	isolateKeySources(t)
	t.Setenv("API_KEY", "primary")
	t.Setenv("GEMINI_API_KEY", "secondary")

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "primary" {
		t.Errorf("expected API_KEY to win, got %q", key)
	}
}

func TestGetAPIKeyNoSource(t *testing.T) {
	isolateKeySources(t)

	_, err := GetAPIKey()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestGetCredentialPath(t *testing.T) {
	path, err := getCredentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cctv-guardian", "credentials.gpg")
	if path != expected {
		t.Errorf("expected path %q, got %q", expected, path)
	}
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := getFromGPG(); err == nil {
		t.Error("expected error when credentials file does not exist")
	}
}

type fakeSSM struct {
	value string
	err   error
	got   *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)}}, nil
}

func TestGetAPIKeyFromSSM(t *testing.T) {
	f := &fakeSSM{value: " ssm-key \n"}
	key, err := GetAPIKeyFromSSM(context.Background(), f, "/cctv-guardian/prod/gemini-api-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "ssm-key" {
		t.Errorf("expected trimmed key, got %q", key)
	}
	if f.got == nil || !aws.ToBool(f.got.WithDecryption) {
		t.Error("expected WithDecryption=true")
	}
	if aws.ToString(f.got.Name) != "/cctv-guardian/prod/gemini-api-key" {
		t.Errorf("unexpected parameter name %q", aws.ToString(f.got.Name))
	}
}

func TestGetAPIKeyFromSSMErrors(t *testing.T) {
	if _, err := GetAPIKeyFromSSM(context.Background(), &fakeSSM{err: errors.New("AccessDenied")}, "/p"); err == nil {
		t.Error("expected error when SSM fails")
	}
	if _, err := GetAPIKeyFromSSM(context.Background(), &fakeSSM{value: ""}, "/p"); err == nil {
		t.Error("expected error for empty parameter")
	}
}

func TestResolveAPIKeyEnvShortCircuits(t *testing.T) {
	isolateKeySources(t)
	t.Setenv("API_KEY", "env-key")

	key, err := ResolveAPIKey(context.Background(), "/never/read")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "env-key" {
		t.Errorf("expected env key, got %q", key)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ValidationErrorType
	}{
		{"no key", ErrNoAPIKey, ErrTypeNoKey},
		{"401", genai.APIError{Code: 401, Message: "unauthenticated"}, ErrTypeInvalidKey},
		{"403 wrapped", fmt.Errorf("generate: %w", genai.APIError{Code: 403}), ErrTypeInvalidKey},
		{"400 key", genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, ErrTypeInvalidKey},
		{"400 other", genai.APIError{Code: 400, Message: "bad schema"}, ErrTypeUnknown},
		{"429", genai.APIError{Code: 429}, ErrTypeQuotaExceeded},
		{"503", genai.APIError{Code: 503}, ErrTypeNetworkError},
		{"deadline", context.DeadlineExceeded, ErrTypeNetworkError},
		{"dial", errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host"), ErrTypeNetworkError},
		{"text key", errors.New("API key not valid"), ErrTypeInvalidKey},
		{"quota text", errors.New("RESOURCE EXHAUSTED: quota"), ErrTypeQuotaExceeded},
		{"other", errors.New("something odd"), ErrTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got == nil {
				t.Fatal("expected non-nil ValidationError")
			}
			if got.Type != tt.want {
				t.Errorf("ClassifyError(%v).Type = %v, want %v", tt.err, got.Type, tt.want)
			}
			if got.Unwrap() == nil {
				t.Errorf("ValidationError should wrap the original error")
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) should be nil")
	}
}

type stubGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (s stubGenerator) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return s.resp, s.err
}

func TestValidateAPIKey(t *testing.T) {
	ok := stubGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}}
	if err := ValidateAPIKey(context.Background(), ok, "m"); err != nil {
		t.Errorf("expected success, got %v", err)
	}

	var valErr *ValidationError
	err := ValidateAPIKey(context.Background(), stubGenerator{err: genai.APIError{Code: 401}}, "m")
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeInvalidKey {
		t.Errorf("expected invalid key error, got %v", err)
	}

	err = ValidateAPIKey(context.Background(), stubGenerator{resp: &genai.GenerateContentResponse{}}, "m")
	if !errors.As(err, &valErr) || valErr.Type != ErrTypeUnknown {
		t.Errorf("expected unknown error for empty response, got %v", err)
	}
}
