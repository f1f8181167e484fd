package vm

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds guest login settings.
type SSHConfig struct {
	// User is the login user (default "root").
	User string

	// Port is the guest's SSH port (default 22).
	Port int

	// KeyPath is an optional private key. Test images typically allow
	// root with an empty password, which is always tried as a fallback.
	KeyPath string

	// ConnectTimeout bounds each dial attempt (default 10s).
	ConnectTimeout time.Duration
}

func (c SSHConfig) withDefaults() SSHConfig {
	if c.User == "" {
		c.User = "root"
	}
	if c.Port == 0 {
		c.Port = 22
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// Address joins host with the configured port.
func (c SSHConfig) Address(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(c.withDefaults().Port))
}

// ClientConfig builds the x/crypto/ssh client configuration.
func (c SSHConfig) ClientConfig() (*ssh.ClientConfig, error) {
	c = c.withDefaults()

	var auth []ssh.AuthMethod
	if c.KeyPath != "" {
		signer, err := LoadSigner(c.KeyPath)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	auth = append(auth,
		ssh.Password(""),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			return make([]string, len(questions)), nil
		}),
	)

	return &ssh.ClientConfig{
		User: c.User,
		Auth: auth,
		//nolint:gosec // G106: throwaway guests regenerate host keys on every boot
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.ConnectTimeout,
	}, nil
}

// LoadSigner reads an OpenSSH or PEM private key.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ssh key %s not found", path)
		}
		return nil, fmt.Errorf("read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", path, err)
	}
	return signer, nil
}

// GenerateKeyPair writes an ed25519 key pair to dir as "id_ed25519" and
// "id_ed25519.pub", unless both already exist. The public half is what an
// image's authorized_keys needs.
func GenerateKeyPair(dir string) (privPath, pubPath string, err error) {
	privPath = filepath.Join(dir, "id_ed25519")
	pubPath = privPath + ".pub"

	_, privErr := os.Stat(privPath)
	_, pubErr := os.Stat(pubPath)
	if privErr == nil && pubErr == nil {
		return privPath, pubPath, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("create ssh directory: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "toolchainqa")
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return "", "", fmt.Errorf("write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		os.Remove(privPath)
		return "", "", fmt.Errorf("convert public key: %w", err)
	}
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(sshPub), 0o644); err != nil {
		os.Remove(privPath)
		return "", "", fmt.Errorf("write public key: %w", err)
	}

	return privPath, pubPath, nil
}
