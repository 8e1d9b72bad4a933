package server

import (
	"html/template"
	"net/http"
	"strings"

	jsonwriter "github.com/postboard/social-front/internal/json"
)

// callbackPageTemplate is the OAuth completion page shown in the popup after
// the provider redirect. It signals the opening tab over a BroadcastChannel
// (with window.opener postMessage as fallback) and then closes itself on
// success. Error states stay open so the user can read the message.
var callbackPageTemplate = template.Must(template.New("callback").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Connecting {{.PlatformLabel}}</title>
    <style>
        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background-color: #f5f5f5;
            color: #333;
            line-height: 1.6;
            display: flex;
            align-items: center;
            justify-content: center;
            min-height: 100vh;
        }

        .card {
            background-color: #fff;
            padding: 40px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            text-align: center;
            max-width: 420px;
        }

        .icon {
            font-size: 48px;
            margin-bottom: 16px;
        }

        h1 {
            font-size: 22px;
            margin-bottom: 10px;
        }

        p {
            color: #666;
            font-size: 14px;
            margin-bottom: 20px;
        }

        button {
            font-size: 14px;
            padding: 10px 24px;
            border-radius: 6px;
            border: none;
            cursor: pointer;
            background-color: #2563eb;
            color: #fff;
        }

        button.secondary {
            background-color: #e5e7eb;
            color: #333;
            margin-left: 8px;
        }
    </style>
</head>
<body>
    <div class="card">
        {{if eq .Status "success"}}
        <div class="icon">&#10003;</div>
        <h1>{{.PlatformLabel}} connected</h1>
        <p>You can close this window. It will close itself in a moment.</p>
        <button onclick="signalAndClose()">Close now</button>
        {{else if eq .Status "unknown"}}
        <div class="icon">&#63;</div>
        <h1>Almost there</h1>
        <p>We could not confirm this sign-in attempt. It may have already completed in another window. If {{.PlatformLabel}} shows as connected in the app, you are all set.</p>
        <button onclick="signalAndClose()">It worked, continue</button>
        <button class="secondary" onclick="window.close()">Close</button>
        {{else}}
        <div class="icon">&#10007;</div>
        <h1>Connection failed</h1>
        <p>{{.Message}}</p>
        <button onclick="window.close()">Close</button>
        {{end}}
    </div>
    <script>
        var status = {{.Status}};
        var platform = {{.Platform}};
        var message = {{.Message}};

        function notify(type, msg) {
            var payload = {type: type, platform: platform};
            if (msg) {
                payload.message = msg;
            }
            try {
                var channel = new BroadcastChannel('postboard-oauth');
                channel.postMessage(payload);
                channel.close();
            } catch (e) {
                // BroadcastChannel unavailable, opener fallback below
            }
            if (window.opener) {
                try {
                    window.opener.postMessage(payload, '*');
                } catch (e) {}
            }
        }

        // Manual close must still tell the opening tab the flow succeeded
        function signalAndClose() {
            notify('OAUTH_SUCCESS');
            window.close();
        }

        if (status === 'success') {
            notify('OAUTH_SUCCESS');
            setTimeout(function () { window.close(); }, 2500);
        } else if (status === 'error') {
            notify('OAUTH_ERROR', message);
        }
    </script>
</body>
</html>
`))

type callbackPageData struct {
	Status        string
	Platform      string
	PlatformLabel string
	Message       string
}

// handleCallbackPage renders the completion page the provider callback
// redirects to
func (h *handlers) handleCallbackPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// A missing or mangled status means we cannot tell what happened, so
	// show the recovery card instead of claiming failure
	status := query.Get("status")
	switch status {
	case "success", "error", "unknown":
	default:
		status = "unknown"
	}

	platform := query.Get("platform")
	message := query.Get("message")
	if status == "error" && message == "" {
		message = "Something went wrong while connecting your account."
	}

	data := callbackPageData{
		Status:        status,
		Platform:      platform,
		PlatformLabel: platformLabel(platform),
		Message:       message,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPageTemplate.Execute(w, data); err != nil {
		jsonwriter.WriteInternalServerError(w, "failed to render page")
	}
}

func platformLabel(platform string) string {
	switch platform {
	case "linkedin":
		return "LinkedIn"
	case "facebook":
		return "Facebook"
	case "twitter":
		return "Twitter"
	case "":
		return "Account"
	default:
		return strings.ToUpper(platform[:1]) + platform[1:]
	}
}
