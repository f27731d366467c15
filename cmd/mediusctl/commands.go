package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/aeolun/medius/pkg/server"
)

// apiClient talks to the admin HTTP API
type apiClient struct {
	base  string
	appID int32
	http  *http.Client
}

func (a *apiClient) url(path string) string {
	u := strings.TrimSuffix(a.base, "/") + path
	if a.appID != 0 {
		u += "?" + url.Values{"app_id": {strconv.Itoa(int(a.appID))}}.Encode()
	}
	return u
}

func (a *apiClient) do(method, path string, out interface{}) error {
	req, err := http.NewRequest(method, a.url(path), nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, body.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func run(api *apiClient, w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "health":
		return showHealth(api, w)
	case "games":
		return showGames(api, w)
	case "end":
		if len(args) != 1 {
			return fmt.Errorf("game id required")
		}
		return endGame(api, w, args[0])
	case "channels":
		return showChannels(api, w)
	case "clients":
		return showClients(api, w)
	case "nodes":
		return showNodes(api, w)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func itoa[T ~int | ~int16 | ~int32](v T) string {
	return strconv.Itoa(int(v))
}

func showHealth(api *apiClient, w io.Writer) error {
	var h server.HealthInfo
	if err := api.do(http.MethodGet, "/api/health", &h); err != nil {
		return err
	}

	tw := newTable(w, "Field", "Value")
	tw.Append([]string{"Status", h.Status})
	tw.Append([]string{"Uptime", (time.Duration(h.UptimeSeconds) * time.Second).String()})
	tw.Append([]string{"Clients", itoa(h.Clients)})
	tw.Append([]string{"Games", itoa(h.Games)})

	roles := make([]string, 0, len(h.Connections))
	for role := range h.Connections {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		tw.Append([]string{"Connections (" + role + ")", itoa(h.Connections[role])})
	}
	tw.Append([]string{"CPU", fmt.Sprintf("%.1f%%", h.CPUPercent)})
	tw.Append([]string{"Memory", fmt.Sprintf("%.1f%%", h.MemoryPercent)})
	tw.Render()
	return nil
}

func showGames(api *apiClient, w io.Writer) error {
	var resp struct {
		Games []server.GameInfo `json:"games"`
	}
	if err := api.do(http.MethodGet, "/api/games", &resp); err != nil {
		return err
	}

	tw := newTable(w, "ID", "App", "Name", "Status", "Players", "Channel", "World", "Host")
	for _, g := range resp.Games {
		tw.Append([]string{
			itoa(g.ID),
			itoa(g.AppID),
			g.Name,
			g.Status,
			fmt.Sprintf("%d/%d", g.PlayerCount, g.MaxPlayers),
			itoa(g.ChannelID),
			itoa(g.DMEWorldID),
			g.Host,
		})
	}
	tw.Render()
	return nil
}

func endGame(api *apiClient, w io.Writer, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid game id %q", arg)
	}
	var g server.GameInfo
	if err := api.do(http.MethodPost, fmt.Sprintf("/api/games/%d/end", id), &g); err != nil {
		return err
	}
	fmt.Fprintf(w, "Ended game %d (%s)\n", g.ID, g.Name)
	return nil
}

func showChannels(api *apiClient, w io.Writer) error {
	var resp struct {
		Channels []server.ChannelInfo `json:"channels"`
	}
	if err := api.do(http.MethodGet, "/api/channels", &resp); err != nil {
		return err
	}

	tw := newTable(w, "ID", "App", "Name", "Type", "Players", "Games")
	for _, ch := range resp.Channels {
		tw.Append([]string{
			itoa(ch.ID),
			itoa(ch.AppID),
			ch.Name,
			ch.Type,
			itoa(ch.PlayerCount),
			itoa(ch.GameCount),
		})
	}
	tw.Render()
	return nil
}

func showClients(api *apiClient, w io.Writer) error {
	var resp struct {
		Clients []server.ClientInfo `json:"clients"`
	}
	if err := api.do(http.MethodGet, "/api/clients", &resp); err != nil {
		return err
	}

	tw := newTable(w, "Account", "Name", "App", "State", "Channel", "Game", "IP")
	for _, cl := range resp.Clients {
		state := "held"
		switch {
		case cl.Connected && cl.LoggedIn:
			state = "online"
		case cl.Connected:
			state = "connected"
		}
		tw.Append([]string{
			itoa(cl.AccountID),
			cl.AccountName,
			itoa(cl.AppID),
			state,
			optional(cl.ChannelID),
			optional(cl.GameID),
			cl.RemoteIP,
		})
	}
	tw.Render()
	return nil
}

func showNodes(api *apiClient, w io.Writer) error {
	var resp struct {
		Nodes []server.NodeInfo `json:"nodes"`
	}
	if err := api.do(http.MethodGet, "/api/nodes", &resp); err != nil {
		return err
	}

	tw := newTable(w, "ID", "App", "Address", "Worlds", "Players", "Alert")
	for _, n := range resp.Nodes {
		tw.Append([]string{
			itoa(n.ID),
			itoa(n.AppID),
			n.Address,
			fmt.Sprintf("%d/%d", n.ActiveWorlds, n.MaxWorlds),
			itoa(n.Players),
			itoa(n.AlertLevel),
		})
	}
	tw.Render()
	return nil
}

func optional(id int32) string {
	if id == 0 {
		return "-"
	}
	return itoa(id)
}
