package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
)

// CookiePath returns the session cache file for email
func (c *Client) CookiePath(email string) string {
	return filepath.Join(c.opts.CookieDir, email+".json")
}

// restoreCookies loads the cached session for email into the jar
func (c *Client) restoreCookies(email string) bool {
	if c.opts.CookieDir == "" {
		return false
	}

	data, err := os.ReadFile(c.CookiePath(email))
	if err != nil {
		return false
	}

	var saved []savedCookie
	if err := json.Unmarshal(data, &saved); err != nil || len(saved) == 0 {
		c.logger.WarnWithFields("ignoring unreadable cookie cache", map[string]interface{}{
			"path": c.CookiePath(email),
		})
		return false
	}

	cookies := make([]*http.Cookie, 0, len(saved))
	for _, sc := range saved {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	c.httpClient.Jar.SetCookies(c.base, cookies)
	return true
}

// saveCookies writes the jar's cookies for the service to the cache file
func (c *Client) saveCookies() error {
	if c.opts.CookieDir == "" || c.email == "" {
		return nil
	}

	cookies := c.httpClient.Jar.Cookies(c.base)
	if len(cookies) == 0 {
		return nil
	}

	saved := make([]savedCookie, 0, len(cookies))
	for _, ck := range cookies {
		saved = append(saved, savedCookie{Name: ck.Name, Value: ck.Value})
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	if err := os.MkdirAll(c.opts.CookieDir, 0700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}

	path := c.CookiePath(c.email)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie cache: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace cookie cache: %w", err)
	}
	return nil
}

// clearCookies drops every cookie held by the client
func (c *Client) clearCookies() {
	if jar, err := cookiejar.New(nil); err == nil {
		c.httpClient.Jar = jar
	}
}
