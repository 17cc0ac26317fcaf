package pca

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseDir      string        `yaml:"-"`
	ListenAddr   string        `yaml:"listen_addr" validate:"required"`
	Keys         KeysConfig    `yaml:"keys"`
	Info         InfoConfig    `yaml:"info"`
	Issuer       IssuerConfig  `yaml:"issuer"`
	Store        BackendConfig `yaml:"store"`
	Grants       BackendConfig `yaml:"grants"`
	TrustAnchors string        `yaml:"trust_anchors,omitempty"` // PEM file, optional
	Cards        []CardConfig  `yaml:"cards" validate:"dive"`
}

// KeysConfig holds hex encoded key material. Public keys may be omitted when
// the private scalar is configured.
type KeysConfig struct {
	PIPrivateKey string `yaml:"pi_private_key,omitempty" validate:"omitempty,hexadecimal"`
	PIPublicKey  string `yaml:"pi_public_key,omitempty" validate:"required_without=PIPrivateKey"`
	PPPrivateKey string `yaml:"pp_private_key,omitempty" validate:"omitempty,hexadecimal"`
	PPPublicKey  string `yaml:"pp_public_key,omitempty" validate:"required_without=PPPrivateKey"`
	SectorKey    string `yaml:"sector_key" validate:"required,hexadecimal"`
}

type InfoConfig struct {
	Flags              string `yaml:"flags,omitempty"`
	ImplementationType string `yaml:"implementation_type,omitempty" validate:"omitempty,oneof=D I P"`
}

type IssuerConfig struct {
	Creator                string `yaml:"creator,omitempty" validate:"omitempty,hexadecimal,len=20"`
	Recipient              string `yaml:"recipient,omitempty" validate:"omitempty,hexadecimal,len=20"`
	RecipientKeySetVersion int    `yaml:"recipient_key_set_version,omitempty" validate:"gte=0,lte=255"`
}

type BackendConfig struct {
	Backend       string   `yaml:"backend,omitempty" validate:"omitempty,oneof=memory valkey"`
	ValkeyAddress []string `yaml:"valkey_address,omitempty" validate:"required_if=Backend valkey"`
	ExpirySeconds int      `yaml:"expiry_seconds,omitempty" validate:"gte=0"`
}

type CardConfig struct {
	ID  string `yaml:"id,omitempty"`
	BSN string `yaml:"bsn" validate:"required,max=15"`
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = strings.Replace(path, "~", home, 1)
	}
	return path
}

func LoadConfigFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	expanded := os.ExpandEnv(string(content))

	cfg := new(Config)
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	cfg.BaseDir = filepath.Dir(path)
	if cfg.TrustAnchors != "" && !filepath.IsAbs(cfg.TrustAnchors) {
		cfg.TrustAnchors = filepath.Join(cfg.BaseDir, cfg.TrustAnchors)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// KeyMaterial is the decoded key configuration. Private keys are nil on the card side.
type KeyMaterial struct {
	PI        *polymorph.KeyPair
	PP        *polymorph.KeyPair
	SectorKey polymorph.SectorKey
}

func (k KeysConfig) Load() (*KeyMaterial, error) {
	pi, err := loadKeyPair(k.PIPrivateKey, k.PIPublicKey)
	if err != nil {
		return nil, fmt.Errorf("PI key: %w", err)
	}
	pp, err := loadKeyPair(k.PPPrivateKey, k.PPPublicKey)
	if err != nil {
		return nil, fmt.Errorf("PP key: %w", err)
	}
	sectorKey, err := hex.DecodeString(k.SectorKey)
	if err != nil {
		return nil, fmt.Errorf("sector key: %w", err)
	}
	if len(sectorKey) < polymorph.MinSectorKeySize {
		return nil, fmt.Errorf("sector key shorter than %d bytes", polymorph.MinSectorKeySize)
	}
	return &KeyMaterial{PI: pi, PP: pp, SectorKey: sectorKey}, nil
}

func loadKeyPair(private, public string) (*polymorph.KeyPair, error) {
	curve := brainpool.P320r1()
	var kp *polymorph.KeyPair
	if private != "" {
		d, ok := new(big.Int).SetString(private, 16)
		if !ok {
			return nil, fmt.Errorf("malformed private key")
		}
		var err error
		if kp, err = polymorph.NewKeyPair(d); err != nil {
			return nil, err
		}
	}
	if public == "" {
		return kp, nil
	}
	raw, err := hex.DecodeString(public)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	q, err := curve.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if kp == nil {
		return &polymorph.KeyPair{Q: q}, nil
	}
	if !kp.Q.Equal(q) {
		return nil, fmt.Errorf("public key does not match private key")
	}
	return kp, nil
}

// Load applies the configured values on top of DefaultInfo.
func (c InfoConfig) Load() (Info, error) {
	info := DefaultInfo()
	if c.Flags != "" {
		flags, err := ParseFlags(c.Flags)
		if err != nil {
			return info, err
		}
		info.Flags = flags
	}
	if c.ImplementationType != "" {
		info.ImplementationType = ImplementationType(c.ImplementationType[0])
	}
	return info, nil
}

// Load applies the configured values on top of DefaultIssuer.
func (c IssuerConfig) Load() (Issuer, error) {
	issuer := DefaultIssuer()
	var err error
	if c.Creator != "" {
		if issuer.Creator, err = ParseOIN(c.Creator); err != nil {
			return issuer, err
		}
	}
	if c.Recipient != "" {
		if issuer.Recipient, err = ParseOIN(c.Recipient); err != nil {
			return issuer, err
		}
	}
	if c.RecipientKeySetVersion != 0 {
		issuer.RecipientKeySetVersion = byte(c.RecipientKeySetVersion)
	}
	return issuer, nil
}
