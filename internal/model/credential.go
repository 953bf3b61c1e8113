package model

import "time"

// ConnectionStatus is the marketplace connection state machine position for
// one user.
type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnected    ConnectionStatus = "connected"
	ConnExpired      ConnectionStatus = "expired"
)

// Credential is the decrypted view of a user's marketplace credentials.
// It exists only inside the vault and the token lifecycle manager; every
// other component sees ConnectionInfo instead.
type Credential struct {
	UserID            string
	AppID             string
	ClientSecret      string
	DevID             string
	RefreshToken      string
	AccessToken       string
	AccessTokenExpiry time.Time
	MarketplaceUserID string
	Status            ConnectionStatus
	UpdatedAt         time.Time
}

// CredentialRecord is the at-rest shape of a credential row. Client secret,
// refresh token and access token are symmetric-encrypted blobs; the remaining
// fields are public.
type CredentialRecord struct {
	UserID               string
	AppID                string
	EncryptedSecret      []byte
	DevID                string
	EncryptedRefreshTok  []byte
	EncryptedAccessTok   []byte
	AccessTokenExpiry    time.Time
	MarketplaceUserID    string
	Status               ConnectionStatus
	UpdatedAt            time.Time
}

// ConnectionInfo is the public projection of a credential record returned to
// components above the token lifecycle manager.
type ConnectionInfo struct {
	UserID            string           `json:"user_id"`
	Status            ConnectionStatus `json:"status"`
	AppID             string           `json:"app_id,omitempty"`
	MarketplaceUserID string           `json:"marketplace_user_id,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
