package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// JWKSClientConfig は公開鍵取得用HTTPクライアントの設定。
type JWKSClientConfig struct {
	Timeout time.Duration
	// RestrictEgress がtrueの場合、プライベート・ループバック・リンクローカル宛ての
	// 取得をブロックし、httpsのみ許可する。
	RestrictEgress bool
}

// blockedNetworks はRestrictEgress時にブロックするネットワーク範囲。
// safeurlはDNS解決後のIPアドレスもDialerで検証する。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// NewJWKSClient はJWKS_URIの取得に使うHTTPクライアントを生成する。
// RestrictEgressが有効な場合はURIを事前検証し、safeurlのクライアントを返す。
func NewJWKSClient(jwksURI string, cfg JWKSClientConfig) (*http.Client, error) {
	if !cfg.RestrictEgress {
		return &http.Client{Timeout: cfg.Timeout}, nil
	}

	if err := ValidateJWKSURI(jwksURI); err != nil {
		return nil, err
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client, nil
}

// ValidateJWKSURI はDNS解決を伴わない静的な検証を行う。
// https以外、空ホスト、ブロック対象のIPアドレスやlocalhostはエラーになる。
func ValidateJWKSURI(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty JWKS URI")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid JWKS URI: %w", err)
	}

	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("disallowed JWKS URI scheme: %q (https only)", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in JWKS URI: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked JWKS host address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked JWKS host: %s", host)
	}

	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
