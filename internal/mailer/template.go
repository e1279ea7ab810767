package mailer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/yuin/goldmark"
)

const otpMarkdown = `# {{.Product}}

**Password Reset Request**

Hello!

You have requested to reset your password for your {{.Product}} account.
Please use the following code to complete your password reset:

## {{.Code}}

**Important:**

- This code is valid for {{.Minutes}} minutes only
- Do not share this code with anyone
- If you didn't request this, please ignore this email

If you have any questions, please contact our support team.

This is an automated email, please do not reply.
`

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
%s</div>
</body>
</html>
`

var otpTemplate = template.Must(template.New("otp").Parse(otpMarkdown))

type otpData struct {
	Product string
	Code    string
	Minutes int
}

// RenderOTP builds the password reset email carrying code.
func RenderOTP(to, product, code string, minutes int) (Message, error) {
	var md bytes.Buffer
	if err := otpTemplate.Execute(&md, otpData{Product: product, Code: code, Minutes: minutes}); err != nil {
		return Message{}, fmt.Errorf("render otp markdown: %w", err)
	}
	var body bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &body); err != nil {
		return Message{}, fmt.Errorf("convert otp markdown: %w", err)
	}
	subject := "Password Reset OTP"
	return Message{
		To:       to,
		Subject:  subject,
		HTMLBody: fmt.Sprintf(htmlShell, subject, body.String()),
		TextBody: md.String(),
		Tag:      "password-reset-otp",
	}, nil
}
