package backend

import "strings"

// Reasons attached to CommandInvalid.
const (
	ReasonMissingURL     = "missing URL"
	ReasonUnsupportedURL = "unsupported URL"
)

// Route classifies an incoming message. botUsername is the bot's own
// username, without '@'; commands addressed to another bot are ignored.
func Route(req IncomingRequest, botUsername string) Command {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Command{Kind: CommandIgnore}
	}

	if strings.HasPrefix(text, "/") {
		name, target, args := parseCommand(text)
		if target != "" && botUsername != "" && !strings.EqualFold(target, botUsername) {
			return Command{Kind: CommandIgnore}
		}
		switch name {
		case "start":
			return Command{Kind: CommandStart}
		case "mp3":
			return fetchCommand(CommandFetchAudio, args, text)
		case "mp4", "video":
			return fetchCommand(CommandFetchVideo, args, text)
		default:
			return Command{Kind: CommandIgnore}
		}
	}

	if url := ExtractURL(text); url != "" && req.IsPrivate() {
		return Command{Kind: CommandFetchVideo, URL: url}
	}
	return Command{Kind: CommandIgnore}
}

// parseCommand splits "/name@target args" into its parts. name is lowercased.
func parseCommand(text string) (name, target, args string) {
	head := text
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		head, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	head = strings.TrimPrefix(head, "/")
	if i := strings.Index(head, "@"); i >= 0 {
		head, target = head[:i], head[i+1:]
	}
	return strings.ToLower(head), target, args
}

func fetchCommand(kind CommandKind, args, text string) Command {
	url := ExtractURL(args)
	if url == "" {
		url = ExtractURL(text)
	}
	if url != "" {
		return Command{Kind: kind, URL: url}
	}
	if containsAnyURL(text) {
		return Command{Kind: CommandInvalid, Reason: ReasonUnsupportedURL}
	}
	return Command{Kind: CommandInvalid, Reason: ReasonMissingURL}
}
