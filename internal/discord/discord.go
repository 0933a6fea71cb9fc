package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Message struct {
	Username *string  `json:"username,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Embeds   *[]Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

func LogEpochSealedToDiscord(discURL, epochID, cid string, jobs int, volume string) error {
	color := "3447003"
	title := fmt.Sprintf("Sealed %s", epochID)
	desc := fmt.Sprintf("Snapshot: %s\n\nJobs: %d\nVolume: %s", cid, jobs, volume)
	uname := "Pool Daemon"
	msg := Message{
		Username: &uname,
		Embeds: &[]Embed{{
			Title:       &title,
			Description: &desc,
			Color:       &color,
		}},
	}
	return SendDiscordMessage(discURL, msg)
}

func SendDiscordMessage(url string, message Message) error {
	if len(url) == 0 {
		return nil
	}
	payload := new(bytes.Buffer)

	err := json.NewEncoder(payload).Encode(message)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", payload)
	if err != nil {
		return err
	}

	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		defer func() {
			_ = resp.Body.Close()
		}()

		responseBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		return fmt.Errorf("%s", responseBody)
	}
	return nil
}
