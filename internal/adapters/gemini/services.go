package gemini

import (
	"context"

	"google.golang.org/genai"

	"geminilab/pkg/errors"
)

// Files adapts client.Files to FileService
type Files struct {
	files *genai.Files
}

func NewFiles(client *genai.Client) *Files {
	return &Files{files: client.Files}
}

func (f *Files) Upload(ctx context.Context, path string, mimeType string) (*genai.File, error) {
	file, err := f.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, errors.Wrapf(err, "upload %s", path)
	}
	return file, nil
}

func (f *Files) Get(ctx context.Context, name string) (*genai.File, error) {
	file, err := f.files.Get(ctx, name, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get file %s", name)
	}
	return file, nil
}

func (f *Files) Delete(ctx context.Context, name string) error {
	if _, err := f.files.Delete(ctx, name, nil); err != nil {
		return errors.Wrapf(err, "delete file %s", name)
	}
	return nil
}

// Tokens adapts client.AuthTokens to TokenService
type Tokens struct {
	tokens *genai.Tokens
}

func NewTokens(client *genai.Client) *Tokens {
	return &Tokens{tokens: client.AuthTokens}
}

// CreateToken issues an ephemeral token locked to the requested Live model and config
func (t *Tokens) CreateToken(ctx context.Context, req TokenRequest) (string, error) {
	token, err := t.tokens.Create(ctx, &genai.CreateAuthTokenConfig{
		Uses:                 genai.Ptr(req.Uses),
		ExpireTime:           req.ExpireTime,
		NewSessionExpireTime: req.NewSessionExpireTime,
		LiveConnectConstraints: &genai.LiveConnectConstraints{
			Model:  req.Model,
			Config: req.Config,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "create auth token")
	}
	if token == nil || token.Name == "" {
		return "", errors.Wrap(errors.ErrInternal, "auth token response has no name")
	}
	return token.Name, nil
}
