package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".cctv-guardian"
	credentialFile = "credentials.gpg"
)

// ErrNoAPIKey is returned when no credential source yields a key.
var ErrNoAPIKey = errors.New("API key not found. Set API_KEY or GEMINI_API_KEY")

// envKeys lists the environment variables checked for the key, in order.
var envKeys = []string{"API_KEY", "GEMINI_API_KEY"}

// SSMParameterGetter is the subset of the SSM client used to read the key.
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetAPIKey retrieves the Gemini API key from local sources.
// Priority order:
//  1. API_KEY environment variable
//  2. GEMINI_API_KEY environment variable
//  3. GPG-encrypted file at ~/.cctv-guardian/credentials.gpg
func GetAPIKey() (string, error) {
	if key := keyFromEnv(); key != "" {
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Msg("No local API key source available")
	return "", ErrNoAPIKey
}

// ResolveAPIKey is GetAPIKey with an SSM Parameter Store lookup slotted in
// between the environment and the GPG file. ssmParam may be empty.
func ResolveAPIKey(ctx context.Context, ssmParam string) (string, error) {
	if key := keyFromEnv(); key != "" {
		return key, nil
	}
	if ssmParam != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load AWS config, skipping SSM key lookup")
		} else {
			key, err := GetAPIKeyFromSSM(ctx, ssm.NewFromConfig(cfg), ssmParam)
			if err == nil {
				return key, nil
			}
			log.Warn().Err(err).Str("param", ssmParam).Msg("SSM key lookup failed")
		}
	}
	return GetAPIKey()
}

// GetAPIKeyFromSSM reads and decrypts the named SecureString parameter.
// Only the parameter name is logged, never the value.
func GetAPIKeyFromSSM(ctx context.Context, client SSMParameterGetter, name string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", name)
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("API key loaded from SSM")
	return strings.TrimSpace(*result.Parameter.Value), nil
}

func keyFromEnv() string {
	for _, name := range envKeys {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			log.Debug().Str("var", name).Msg("Using API key from environment variable")
			return key
		}
	}
	return ""
}

// getFromGPG decrypts the API key from the GPG-encrypted credentials file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}

	passphrasePath, err := getPassphrasePath()
	if err == nil {
		fi, statErr := os.Stat(passphrasePath)
		if statErr == nil {
			// passphrase file must be owner-only
			mode := fi.Mode().Perm()
			if mode&0077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	cmd := exec.Command("gpg", args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, credentialFile), nil
}

// getPassphrasePath returns the path to the GPG passphrase file, looking next
// to the executable first and then in the working directory.
func getPassphrasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	passphrasePath := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
	if _, err := os.Stat(passphrasePath); err == nil {
		return passphrasePath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	return filepath.Join(cwd, ".gpg-passphrase"), nil
}
