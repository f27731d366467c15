package server

import (
	"context"
	"strings"

	"github.com/aeolun/medius/pkg/protocol"
)

// newsLimit caps the announcements joined into one news answer
const newsLimit = 5

// universeRole answers the directory queries titles make before logging in
type universeRole struct {
	srv *Server
}

func (u *universeRole) connected(c *Conn) {
	c.log.Debug().Msg("universe connection ready")
}

func (u *universeRole) disconnected(*Conn) {}

func (u *universeRole) handleApp(c *Conn, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.GetUniverseInformationRequest:
		return u.universeInformation(c, m)
	case *protocol.ChannelListRequest:
		return sendChannelList(u.srv, c, m.PageRequest)
	case *protocol.VersionServerRequest:
		return c.SendApp(&protocol.VersionServerResponse{
			MessageID:     m.MessageID,
			VersionServer: versionServerString,
			StatusCode:    protocol.StatusSuccess,
		})
	case *protocol.GetServerTimeRequest:
		return c.SendApp(serverTime(m.MessageID, u.srv.now()))
	}
	c.log.Warn().Stringer("tag", msg.Tag()).Msg("message not handled by role")
	return nil
}

// universesFor returns the configured universes of a title
func (u *universeRole) universesFor(appID int32) []UniverseEntry {
	var out []UniverseEntry
	for _, e := range u.srv.cfg.Universes {
		if e.AppID == appID {
			out = append(out, e)
		}
	}
	return out
}

func (u *universeRole) universeInformation(c *Conn, m *protocol.GetUniverseInformationRequest) error {
	filter := m.InfoType
	if filter == 0 {
		// Titles that send no filter expect the status list
		filter = protocol.InfoUniverses
	}

	universes := u.universesFor(c.AppID())
	if len(universes) == 0 {
		if err := c.SendApp(&protocol.UniverseVariableInformationResponse{
			MessageID:  m.MessageID,
			StatusCode: protocol.StatusNoResult,
			InfoFilter: filter,
			EndOfList:  true,
		}); err != nil {
			return err
		}
	}

	for i, e := range universes {
		last := i == len(universes)-1
		if err := u.sendUniverse(c, m.MessageID, filter, e, last); err != nil {
			return err
		}
	}

	if filter.Has(protocol.InfoNews) {
		u.sendNews(c, m.MessageID)
	}
	return nil
}

func (u *universeRole) sendUniverse(c *Conn, messageID string, filter protocol.UniverseInfoFilter, e UniverseEntry, last bool) error {
	if filter.Has(protocol.InfoUniverses) {
		return c.SendApp(&protocol.UniverseStatusListResponse{
			MessageID:           messageID,
			StatusCode:          protocol.StatusSuccess,
			UniverseName:        e.Name,
			DNS:                 e.DNS,
			Port:                e.Port,
			UniverseDescription: e.Description,
			Status:              e.Status,
			UserCount:           e.UserCount,
			MaxUsers:            e.MaxUsers,
			EndOfList:           last,
		})
	}

	if filter.Has(protocol.InfoSvoURL) && protocol.SvoURLIncluded(c.AppID()) && e.SvoURL != "" {
		if err := c.SendApp(&protocol.UniverseSvoURLResponse{MessageID: messageID, URL: e.SvoURL}); err != nil {
			return err
		}
	}

	resp := &protocol.UniverseVariableInformationResponse{
		MessageID:           messageID,
		StatusCode:          protocol.StatusSuccess,
		InfoFilter:          filter,
		UniverseID:          e.UniverseID,
		UniverseName:        e.Name,
		DNS:                 e.DNS,
		Port:                e.Port,
		UniverseDescription: e.Description,
		Status:              e.Status,
		UserCount:           e.UserCount,
		MaxUsers:            e.MaxUsers,
		UniverseBilling:     e.Billing,
		BillingSystemName:   e.BillingSystemName,
		SvoURL:              e.SvoURL,
		EndOfList:           last,
	}
	if filter.Has(protocol.InfoExtraInfo) {
		resp.ExtendedInfo = e.ExtendedInfo
	}
	return c.SendApp(resp)
}

// sendNews answers the title's announcements, falling back to the
// configured news line. The store is read off the processing turn.
func (u *universeRole) sendNews(c *Conn, messageID string) {
	fallback := u.srv.cfg.News
	answer := func(news string) {
		status := protocol.StatusSuccess
		if news == "" {
			status = protocol.StatusNoResult
		}
		c.SendApp(&protocol.UniverseNewsResponse{
			MessageID:  messageID,
			StatusCode: status,
			News:       truncate(news, protocol.UniverseNewsLen),
			EndOfList:  true,
		})
	}

	store := u.srv.accounts
	if store == nil {
		answer(fallback)
		return
	}
	appID := c.AppID()
	logger := c.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		news := fallback
		items, err := store.ListAnnouncements(ctx, appID, newsLimit)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read announcements")
		} else if len(items) > 0 {
			lines := make([]string, 0, len(items))
			for _, a := range items {
				lines = append(lines, a.Body)
			}
			news = strings.Join(lines, "\n")
		}
		c.post(func() { answer(news) })
	}()
}
