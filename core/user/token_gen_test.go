package user

import (
	"strconv"
	"testing"
	"time"
)

func TestLinkSigner(t *testing.T) {
	secretKey := "secret"
	ttl := 48 * time.Hour
	signer := resetLinks(secretKey, ttl)

	now := time.Now()
	usr := User{
		ID:        "5d3c2b1a-0000-4000-8000-000000000001",
		Name:      "Ravi",
		Username:  "ravi",
		Email:     "ravi@example.com",
		Role:      RoleUser,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("Counsel0r!2026")

	validToken := signer.make(usr)

	// minted before the ttl
	nowFunc = func() time.Time { return time.Now().Add(-ttl - 2*time.Hour) }
	expiredToken := signer.make(usr)
	nowFunc = func() time.Time { return time.Now().Add(3 * time.Hour) }
	futureToken := signer.make(usr)
	nowFunc = time.Now // reset

	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)
	newPassword := usr
	_ = newPassword.SetPassword("An0ther!Secret")
	deactivated := usr
	deactivated.IsActive = false
	promoted := usr
	promoted.Role = RoleManager
	moved := usr
	moved.Email = "ravi@college.example"

	tests := []struct {
		name    string
		signer  linkSigner
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", signer: signer, usr: usr, wantErr: errInvalidToken},
		{name: "no separator", signer: signer, usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "bad timestamp", signer: signer, usr: usr, token: "!!.sig", wantErr: errInvalidToken},
		{name: "empty mac", signer: signer, usr: usr, token: strconv.FormatInt(hoursSinceEpoch(now), 36) + ".", wantErr: errInvalidToken},
		{name: "forged mac", signer: signer, usr: usr, token: strconv.FormatInt(hoursSinceEpoch(now), 36) + ".c2lnc2ln", wantErr: errInvalidToken},
		{name: "expired", signer: signer, usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "issued in the future", signer: signer, usr: usr, token: futureToken, wantErr: errInvalidToken},
		{name: "used after login", signer: signer, usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "password already changed", signer: signer, usr: newPassword, token: validToken, wantErr: errInvalidToken},
		{name: "account deactivated", signer: signer, usr: deactivated, token: validToken, wantErr: errInvalidToken},
		{name: "role changed", signer: signer, usr: promoted, token: validToken, wantErr: errInvalidToken},
		{name: "email changed", signer: signer, usr: moved, token: validToken, wantErr: errInvalidToken},
		{name: "other secret", signer: resetLinks("other", ttl), usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "other purpose", signer: newLinkSigner("crm.invite", secretKey, ttl), usr: usr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", signer: signer, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.signer.check(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLinkSigner_minimumTTL(t *testing.T) {
	if got := resetLinks("secret", time.Minute).ttl; got != time.Hour {
		t.Errorf("ttl = %v; want %v", got, time.Hour)
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "5d3c2b1a-0000-4000-8000-000000000001"}
	uid := EncodeUID(usr)
	got, err := decodeUID(uid)
	if err != nil {
		t.Fatalf("decodeUID() failed: %v", err)
	}
	if got != usr.ID {
		t.Errorf("decodeUID() = %s; want %s", got, usr.ID)
	}
}
