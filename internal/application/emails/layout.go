package emails

import (
	"fmt"
	"strings"
	"time"
)

const (
	themePrimary   = "#1E3A5F"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// EmailLayout wraps content in the shared HTML layout of syndic notices.
func EmailLayout(contentHTML, senderName string) string {
	year := time.Now().Year()
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <style>
    body { margin: 0; padding: 0; width: 100%% !important; background-color: %s; -webkit-font-smoothing: antialiased; }
    table { border-collapse: collapse; }
    body, td, p, a, li { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 20px 0; font-size: 15px; line-height: 1.6; color: #374151; }
    .content-body h1 { color: #111827; font-size: 22px; margin-top: 0; margin-bottom: 18px; font-weight: 700; }
    .content-body table.calls { width: 100%%; margin-bottom: 20px; }
    .content-body table.calls th { text-align: left; font-size: 13px; color: %s; border-bottom: 1px solid #E5E7EB; padding: 6px 4px; }
    .content-body table.calls td { font-size: 14px; border-bottom: 1px solid #F3F4F6; padding: 6px 4px; }
    .content-body td.amount { text-align: right; white-space: nowrap; }
    .footer-text { color: %s; font-size: 12px; line-height: 1.5; }
  </style>
</head>
<body style="margin: 0; padding: 0; background-color: %s;">
  <table role="presentation" width="100%%" border="0" cellspacing="0" cellpadding="0" style="background-color: %s;">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" width="600" border="0" cellspacing="0" cellpadding="0" style="width: 600px; background-color: %s; border-radius: 8px; overflow: hidden;">
          <tr>
            <td align="center" style="padding: 28px 0; background-color: %s; color: %s; font-size: 18px; font-weight: 700;">%s</td>
          </tr>
          <tr>
            <td class="content-body" style="padding: 32px 48px 24px 48px;">%s</td>
          </tr>
          <tr>
            <td align="center" style="padding: 20px 48px 32px 48px;">
              <p class="footer-text" style="margin: 0;">© %d %s. Message envoyé automatiquement, merci de ne pas y répondre.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		EscapeHTML(senderName), themeBgBody, themeTextMain, themeTextMuted, themeTextMuted,
		themeBgBody, themeBgBody, themeWhite, themePrimary, themeWhite, EscapeHTML(senderName),
		contentHTML, year, EscapeHTML(senderName))
}

// EscapeHTML escapes HTML specials for safe interpolation.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
