package utils

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
)

// GetFullAddress turns ":8554" into "localhost:8554".
func GetFullAddress(addr string) string {
	if len(addr) > 0 {
		ret := addr
		if ':' == addr[0] {
			ret = fmt.Sprintf("localhost%s", ret)
		}
		return ret
	}

	return ""
}

func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

func ExternalIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return "", err
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			return ip.String(), nil
		}
	}
	return "", errors.New("are you connected to the network?")
}

// PublicRTSPAddress replaces a loopback or empty host in server with the
// machine's external address, for display to remote subscribers.
func PublicRTSPAddress(server string) string {
	server = GetFullAddress(server)
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		return server
	}
	if host != "" && host != "localhost" && host != "127.0.0.1" {
		return server
	}
	ip, err := ExternalIP()
	if err != nil {
		return server
	}
	return net.JoinHostPort(ip, port)
}
