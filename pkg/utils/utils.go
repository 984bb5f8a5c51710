package utils

import (
	"errors"
	"net"
	"strings"
)

// GetLocalIP 返回首个可用的非回环 IPv4 地址，排除常见虚拟接口
func GetLocalIP() (string, error) {
	virtualPrefixes := []string{
		"docker", "vmnet", "vboxnet", "br-", "veth", "lo", "tun", "tap",
		"wg", "tailscale", "utun", "virbr",
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var fallbackIP string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		skip := false
		for _, prefix := range virtualPrefixes {
			if strings.HasPrefix(name, prefix) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP == nil || ipNet.IP.IsLoopback() {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil {
				continue // 只取 IPv4
			}
			if ip.IsPrivate() {
				return ip.String(), nil
			}
			if fallbackIP == "" {
				fallbackIP = ip.String()
			}
		}
	}

	if fallbackIP != "" {
		return fallbackIP, nil
	}
	return "", errors.New("no valid local IP found")
}
