package user

import (
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	tg := NewTokenGenerator("secret", timeout)

	now := time.Now()
	usr := User{
		ID:        "7b0f3c6e-5f9c-4c43-9a4e-0a3f9d3b2c11",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := tg.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() error = %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	tg.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := tg.MakeToken(usr)
	tg.NowFunc = time.Now // reset

	// a token made by another secret
	otherToken, _ := NewTokenGenerator("other", timeout).MakeToken(usr)

	// changing the password invalidates previous tokens
	newPwdUsr := usr
	_ = newPwdUsr.SetPassword("new-pwd")

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "other secret", usr: usr, token: otherToken, wantErr: errInvalidToken},
		{name: "password changed", usr: newPwdUsr, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tg.VerifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "7b0f3c6e-5f9c-4c43-9a4e-0a3f9d3b2c11"}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("decodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("decodeUID() = %v, want %v", id, usr.ID)
	}
	if _, err := decodeUID("!!"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}
