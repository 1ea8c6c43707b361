// ABOUTME: mDNS service discovery for noodler remote control
// ABOUTME: Advertises a running player and browses for players on the LAN
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type players advertise under
	ServiceType = "_noodler._tcp"

	// DefaultBrowseTimeout is how long Browse listens for answers
	DefaultBrowseTimeout = 3 * time.Second

	domain = "local"
)

// Config holds advertisement configuration
type Config struct {
	Name    string
	Port    int
	Path    string
	ID      string
	Version string
}

// Player describes a discovered player
type Player struct {
	Name    string
	Host    string
	Port    int
	Path    string
	ID      string
	Version string
}

// Addr returns host:port for dialing
func (p Player) Addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprint(p.Port))
}

// Advertise publishes the player until ctx is cancelled
func Advertise(ctx context.Context, cfg Config) error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		cfg.Name,
		ServiceType,
		"",
		"",
		cfg.Port,
		ips,
		txtRecords(cfg),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Info("Advertising mDNS service", "name", cfg.Name, "port", cfg.Port, "type", ServiceType)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Browse listens for players for the given duration
func Browse(ctx context.Context, timeout time.Duration) ([]Player, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	if d, ok := ctx.Deadline(); ok && time.Until(d) < timeout {
		timeout = time.Until(d)
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(map[string]Player)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entries {
			p, ok := playerFromEntry(entry)
			if !ok {
				continue
			}
			log.Debug("Discovered player", "name", p.Name, "addr", p.Addr())
			found[p.Addr()] = p
		}
	}()

	params := &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      domain,
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	}
	err := mdns.Query(params)
	close(entries)
	<-collected
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}

	players := make([]Player, 0, len(found))
	for _, p := range found {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

func playerFromEntry(entry *mdns.ServiceEntry) (Player, bool) {
	if entry == nil || entry.AddrV4 == nil || !strings.Contains(entry.Name, ServiceType) {
		return Player{}, false
	}
	p := Player{
		Name: instanceName(entry.Name),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}
	txt := parseTXT(entry.InfoFields)
	p.Path = txt["path"]
	p.ID = txt["id"]
	p.Version = txt["version"]
	return p, true
}

func txtRecords(cfg Config) []string {
	var txt []string
	if cfg.Path != "" {
		txt = append(txt, "path="+cfg.Path)
	}
	if cfg.ID != "" {
		txt = append(txt, "id="+cfg.ID)
	}
	if cfg.Version != "" {
		txt = append(txt, "version="+cfg.Version)
	}
	return txt
}

func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

// instanceName strips the service and domain from a full instance name
func instanceName(full string) string {
	name := strings.TrimSuffix(full, ".")
	name = strings.TrimSuffix(name, "."+domain)
	name = strings.TrimSuffix(name, "."+ServiceType)
	return strings.ReplaceAll(name, `\ `, " ")
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
