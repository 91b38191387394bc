package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient wraps the admin SDK auth client. The chat core only
// needs token verification and the basic account fields; account
// creation and management belong to other systems.
type FirebaseAuthClient struct {
	client *auth.Client
}

// AccountInfo is the identity-provider view of a signed-in user.
type AccountInfo struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken validates a Firebase ID token and returns the uid it is
// issued for.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, idToken string) (string, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return token.UID, nil
}

// GetAccount loads the auth record behind a uid.
func (f *FirebaseAuthClient) GetAccount(ctx context.Context, uid string) (*AccountInfo, error) {
	record, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	return &AccountInfo{
		UID:         record.UID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		PhotoURL:    record.PhotoURL,
	}, nil
}
