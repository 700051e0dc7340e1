package console

import (
	"fmt"
	"net"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/accounts/storage"
	"github.com/nerrad567/stalink/internal/linklog"
)

const defaultHistory = 10

func commandTable() map[string]command {
	return map[string]command{
		"help":       {"help", "list commands", (*Console).cmdHelp},
		"uname":      {"uname", "print version and platform", (*Console).cmdUname},
		"status":     {"status", "show link and station state", (*Console).cmdStatus},
		"mac":        {"mac [addr]", "show or set the station MAC address", (*Console).cmdMAC},
		"scan":       {"scan", "start a scan; the stored network is joined if found", (*Console).cmdScan},
		"connect":    {"connect <ssid> [password]", "store credentials and look for the network", (*Console).cmdConnect},
		"disconnect": {"disconnect", "drop the link", (*Console).cmdDisconnect},
		"provision":  {"provision start|stop", "open or close the provisioning window", (*Console).cmdProvision},
		"storage":    {"storage show|restore", "show stored credentials or restore defaults", (*Console).cmdStorage},
		"accounts":   {"accounts", "list mediator accounts", (*Console).cmdAccounts},
		"history":    {"history [n]", "show the last link events", (*Console).cmdHistory},
	}
}

func sortedNames(cmds map[string]command) []string {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Console) cmdHelp(_ []string) error {
	for _, name := range sortedNames(c.commands) {
		cmd := c.commands[name]
		c.printf("  %-28s %s\n", cmd.usage, cmd.help)
	}
	c.printf("  %-28s %s\n", "exit", "leave the console")
	return nil
}

func (c *Console) cmdUname(_ []string) error {
	version := c.info.Version
	if version == "" {
		version = "dev"
	}
	c.printf("stalink %s", version)
	if c.info.Commit != "" {
		c.printf(" (%s)", c.info.Commit)
	}
	if c.info.Date != "" {
		c.printf(" built %s", c.info.Date)
	}
	c.printf("\n%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if c.info.Device != "" {
		c.printf(" device=%s", c.info.Device)
	}
	c.printf("\n")
	return nil
}

func (c *Console) cmdStatus(_ []string) error {
	c.printf("station:  %s flags=%s\n", c.st.State(), c.st.Flags())
	if session, ok := c.st.Session(); ok {
		c.printf("session:  %s %s since %s locks=%d\n",
			session.ID, session.Variant, session.Started.Format("15:04:05"), session.Locks)
	}

	req := &network.Request{Type: network.TypeNetwork}
	if err := c.acct.Pull(network.Name, req); err != nil {
		c.printf("network:  unavailable (%s)\n", err)
		return nil
	}
	c.printf("network:  %s\n", req.Network.State)
	if req.Network.State == network.Connected {
		ip := req.Network.IPv4
		c.printf("ip:       %s\ngateway:  %s\nnetmask:  %s\n", ip.Addr(), ip.GatewayAddr(), ip.Mask())
	}
	return nil
}

func (c *Console) cmdMAC(args []string) error {
	switch len(args) {
	case 0:
		req := &network.Request{Type: network.TypeMAC}
		if err := c.acct.Pull(network.Name, req); err != nil {
			return err
		}
		c.printf("%s\n", req.MAC)
		return nil
	case 1:
		mac, err := net.ParseMAC(args[0])
		if err != nil {
			return fmt.Errorf("%w: mac: %v", ErrUsage, err)
		}
		if err := c.acct.Notify(network.Name, &network.Request{Type: network.TypeMAC, MAC: mac}); err != nil {
			return err
		}
		c.printf("mac set to %s\n", mac)
		return nil
	default:
		return fmt.Errorf("%w: mac [addr]", ErrUsage)
	}
}

func (c *Console) cmdScan(_ []string) error {
	if err := c.st.StartScan(nil); err != nil {
		return err
	}
	c.printf("scan started\n")
	return nil
}

func (c *Console) cmdConnect(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: connect <ssid> [password]", ErrUsage)
	}
	req := &network.Request{Type: network.TypeConnect}
	req.Connect.SSID = []byte(args[0])
	if len(args) == 2 {
		req.Connect.Password = []byte(args[1])
	}
	if err := c.acct.Notify(network.Name, req); err != nil {
		return err
	}
	c.printf("looking for %q\n", args[0])
	return nil
}

func (c *Console) cmdDisconnect(_ []string) error {
	return c.acct.Notify(network.Name, &network.Request{Type: network.TypeDisconnect})
}

func (c *Console) cmdProvision(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: provision start|stop", ErrUsage)
	}
	switch args[0] {
	case "start":
		if err := c.st.StartProvisioning(); err != nil {
			return err
		}
		if session, ok := c.st.Session(); ok {
			c.printf("provisioning session %s (%s)\n", session.ID, session.Variant)
		}
		return nil
	case "stop":
		c.st.StopProvisioning()
		return nil
	default:
		return fmt.Errorf("%w: provision start|stop", ErrUsage)
	}
}

func (c *Console) cmdStorage(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: storage show|restore", ErrUsage)
	}
	switch args[0] {
	case "show":
		req := &storage.Request{Type: storage.TypeWiFi}
		if err := c.acct.Pull(storage.Name, req); err != nil {
			return err
		}
		if req.WiFi.IsZero() {
			c.printf("wifi: <empty>\n")
			return nil
		}
		c.printf("wifi: ssid=%q password=%s\n", req.WiFi.SSID, mask(req.WiFi.Password))
		return nil
	case "restore":
		if err := c.acct.Notify(storage.Name, &storage.Request{Type: storage.TypeRestore}); err != nil {
			return err
		}
		c.printf("storage restored to defaults\n")
		return nil
	default:
		return fmt.Errorf("%w: storage show|restore", ErrUsage)
	}
}

func (c *Console) cmdAccounts(_ []string) error {
	for _, a := range c.m.Accounts() {
		s := a.Stats()
		c.printf("%-10s subs=%-24s pulls=%d notifies=%d publishes=%d failures=%d\n",
			a.Name(), strings.Join(a.Subscriptions(), ","), s.Pulls, s.Notifies, s.Publishes, s.Failures)
	}
	return nil
}

func (c *Console) cmdHistory(args []string) error {
	if c.journal == "" {
		return fmt.Errorf("journal disabled")
	}
	n := defaultHistory
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("%w: history [n]", ErrUsage)
		}
		n = v
	}
	recs, err := linklog.Tail(c.journal, n)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		c.printf("%s\n", rec)
	}
	return nil
}

func mask(password []byte) string {
	if len(password) == 0 {
		return "<none>"
	}
	return strings.Repeat("*", len(password))
}
