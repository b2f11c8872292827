package domain

// WalletLoginRequest is the DTO for primary (wallet-signature) authentication.
// The signature is the wallet's serialized personal-message signature over
// Message, and must verify against Address before any credential is issued.
type WalletLoginRequest struct {
	Address   string `json:"address" validate:"required,min=3,max=128"`
	Signature string `json:"signature" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// ZkLoginRequest is the DTO for secondary (derived zk-identity) authentication.
// The field carries the external identity provider's signed assertion.
type ZkLoginRequest struct {
	Assertion string `json:"jwt" validate:"required"`
}

// LoginResponse is returned by both login paths.
type LoginResponse struct {
	Token      string `json:"token"`
	SuiAddress string `json:"sui_address"`
}
