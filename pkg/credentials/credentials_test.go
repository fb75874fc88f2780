/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chainguard.dev/sdk/sts"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog/slogtest"
)

func testKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func TestStore(t *testing.T) {
	ctx := slogtest.Context(t)
	tok := NewToken("pat", "hunter2")
	store := NewStore(tok)

	got, ok, err := store.Lookup(ctx, "pat")
	if err != nil || !ok || got != tok {
		t.Errorf("Lookup(pat) = (%v, %v, %v), wanted the token", got, ok, err)
	}

	got, ok, err = store.Lookup(ctx, "missing")
	if err != nil || ok || got != nil {
		t.Errorf("Lookup(missing) = (%v, %v, %v), wanted nothing", got, ok, err)
	}

	replaced := NewToken("pat", "hunter3")
	store.Add(replaced)
	if got, _, _ := store.Lookup(ctx, "pat"); got != replaced {
		t.Errorf("Lookup(pat) after Add = %v, wanted the replacement", got)
	}
}

func TestLookupFunc(t *testing.T) {
	boom := errors.New("vault sealed")
	l := LookupFunc(func(context.Context, string) (Credentials, bool, error) {
		return nil, false, boom
	})
	if _, _, err := l.Lookup(context.Background(), "any"); !errors.Is(err, boom) {
		t.Errorf("Lookup() = %v, wanted %v", err, boom)
	}
}

func TestToken_Transport(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tok := NewToken("pat", "hunter2")
	if tok.IsApp() {
		t.Error("IsApp() = true for a static token")
	}

	tr, err := tok.Transport(srv.Client().Transport, "")
	if err != nil {
		t.Fatalf("Transport() = %v", err)
	}
	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	resp.Body.Close()

	if want := "Bearer hunter2"; gotAuth != want {
		t.Errorf("Authorization = %q, wanted %q", gotAuth, want)
	}
}

func TestNewApp(t *testing.T) {
	signer, err := NewPEMSigner(testKeyPEM(t))
	if err != nil {
		t.Fatalf("NewPEMSigner() = %v", err)
	}

	tests := []struct {
		name           string
		appID          int64
		installationID int64
		signer         ghinstallation.Signer
		wantErr        bool
	}{{
		name:           "valid",
		appID:          1,
		installationID: 2,
		signer:         signer,
	}, {
		name:           "missing app id",
		installationID: 2,
		signer:         signer,
		wantErr:        true,
	}, {
		name:    "missing installation id",
		appID:   1,
		signer:  signer,
		wantErr: true,
	}, {
		name:           "missing signer",
		appID:          1,
		installationID: 2,
		wantErr:        true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewApp("app", tt.appID, tt.installationID, tt.signer)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewApp() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !app.IsApp() {
				t.Error("IsApp() = false")
			}
			if app.AppID() != tt.appID || app.InstallationID() != tt.installationID {
				t.Errorf("ids = (%d, %d), wanted (%d, %d)", app.AppID(), app.InstallationID(), tt.appID, tt.installationID)
			}
		})
	}
}

func TestApp_Transport(t *testing.T) {
	signer, err := NewPEMSigner(testKeyPEM(t))
	if err != nil {
		t.Fatalf("NewPEMSigner() = %v", err)
	}
	app, err := NewApp("app", 1234, 5678, signer)
	if err != nil {
		t.Fatalf("NewApp() = %v", err)
	}

	tests := []struct {
		name    string
		apiURL  string
		wantURL string
	}{{
		name:    "public github",
		wantURL: "https://api.github.com",
	}, {
		name:    "enterprise",
		apiURL:  "https://ghe.example.com/api/v3/",
		wantURL: "https://ghe.example.com/api/v3",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := app.Transport(nil, tt.apiURL)
			if err != nil {
				t.Fatalf("Transport() = %v", err)
			}
			tr, ok := rt.(*ghinstallation.Transport)
			if !ok {
				t.Fatalf("Transport() = %T, wanted *ghinstallation.Transport", rt)
			}
			if tr.BaseURL != tt.wantURL {
				t.Errorf("BaseURL = %q, wanted %q", tr.BaseURL, tt.wantURL)
			}
		})
	}
}

func TestNewSigner(t *testing.T) {
	ctx := slogtest.Context(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(good, testKeyPEM(t), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{{
		name: "file",
		ref:  "file://" + good,
	}, {
		name:    "unparseable file",
		ref:     "file://" + bad,
		wantErr: true,
	}, {
		name:    "missing file",
		ref:     "file://" + filepath.Join(dir, "missing.pem"),
		wantErr: true,
	}, {
		name:    "no scheme",
		ref:     good,
		wantErr: true,
	}, {
		name:    "unknown scheme",
		ref:     "vault://secret/app",
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewSigner(ctx, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSigner() = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && signer == nil {
				t.Error("NewSigner() returned a nil signer")
			}
		})
	}
}

func TestOctoSTS_Token(t *testing.T) {
	originalFunc := octoTokenFunc
	t.Cleanup(func() { octoTokenFunc = originalFunc })

	octoTokenFunc = func(_ context.Context, identity, org, repo string) (string, error) {
		if identity != "checks" || org != "org" || repo != "repo" {
			t.Errorf("octoTokenFunc(%q, %q, %q), wanted (checks, org, repo)", identity, org, repo)
		}
		return "minted", nil
	}

	o := NewOctoSTS("octo", "checks", "org", "repo")
	if !o.IsApp() {
		t.Error("IsApp() = false for octo sts credentials")
	}

	ts := &octoTokenSource{ctx: context.Background(), identity: "checks", org: "org", repo: "repo"}
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token() = %v", err)
	}
	if tok.AccessToken != "minted" || tok.TokenType != "Bearer" {
		t.Errorf("Token() = %+v, wanted a bearer token", tok)
	}
	if until := time.Until(tok.Expiry); until < 54*time.Minute || until > 56*time.Minute {
		t.Errorf("token expires in %v, wanted about 55m", until)
	}
}

func TestOctoSTS_TokenError(t *testing.T) {
	originalFunc := octoTokenFunc
	t.Cleanup(func() { octoTokenFunc = originalFunc })

	boom := errors.New("policy not found")
	octoTokenFunc = func(context.Context, string, string, string) (string, error) {
		return "", boom
	}

	ts := &octoTokenSource{ctx: context.Background(), identity: "checks", org: "org"}
	if _, err := ts.Token(); !errors.Is(err, boom) {
		t.Errorf("Token() = %v, wanted %v", err, boom)
	}
}

type fakeExchanger struct {
	sts.Exchanger

	pair sts.TokenPair
	err  error
	got  string
}

func (f *fakeExchanger) Exchange(_ context.Context, token string, _ ...sts.ExchangerOption) (sts.TokenPair, error) {
	f.got = token
	return f.pair, f.err
}

func TestExchangeIDToken(t *testing.T) {
	ctx := slogtest.Context(t)
	boom := errors.New("permission denied")

	tests := []struct {
		name    string
		xchg    *fakeExchanger
		want    string
		wantErr error
	}{{
		name: "access token",
		xchg: &fakeExchanger{pair: sts.TokenPair{AccessToken: "ghs_installation", RefreshToken: "refresh"}},
		want: "ghs_installation",
	}, {
		name:    "exchange error",
		xchg:    &fakeExchanger{err: boom},
		wantErr: boom,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exchangeIDToken(ctx, tt.xchg, "id-token")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("exchangeIDToken() = %v, wanted %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("exchangeIDToken() = %q, wanted %q", got, tt.want)
			}
			if tt.xchg.got != "id-token" {
				t.Errorf("exchanged %q, wanted the id token", tt.xchg.got)
			}
		})
	}
}
