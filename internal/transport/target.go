package transport

import (
	"fmt"
	"net/url"
)

func buildTargetURL(baseURL string, elem ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return u.JoinPath(elem...).String(), nil
}

func eventsURL(baseURL, subjectID string) (string, error) {
	return buildTargetURL(baseURL, "threads", subjectID, "events")
}

func completionsURL(baseURL, subjectID string) (string, error) {
	return buildTargetURL(baseURL, "threads", subjectID, "completions")
}
