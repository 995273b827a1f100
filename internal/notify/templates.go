package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

// templateData is what every email template renders from.
type templateData struct {
	Brand         string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	OrderID       string
	DisplayID     string
	DownloadLink  string
	Attached      bool
	ServiceDate   string
	Total         string
	ServiceName   string
}

type emailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func mustTemplate(name, subject, text, html string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".text").Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html)),
	}
}

type rendered struct {
	Subject string
	Text    string
	HTML    string
}

func (t emailTemplate) render(d templateData) (rendered, error) {
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, d); err != nil {
		return rendered{}, fmt.Errorf("subject: %w", err)
	}
	if err := t.text.Execute(&text, d); err != nil {
		return rendered{}, fmt.Errorf("text body: %w", err)
	}
	if err := t.html.Execute(&html, d); err != nil {
		return rendered{}, fmt.Errorf("html body: %w", err)
	}
	return rendered{
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()),
		HTML:    strings.TrimSpace(html.String()),
	}, nil
}

var confirmationTemplates = map[string]emailTemplate{
	orders.LocaleEN: mustTemplate("confirmation.en",
		`Your {{.Brand}} Service Order is Confirmed 🎉`,
		`
Dear {{.CustomerName}},

Thank you for booking your service with {{.Brand}}.

We're happy to let you know that your service order #{{.DisplayID}} has been successfully confirmed.

{{if .Attached}}Please find attached the invoice for your order.{{else}}You can download your invoice here: {{.DownloadLink}}{{end}}

We'll be in touch shortly to guide you through the next steps and make sure everything goes smoothly.

We're here to support you and can't wait to make this part of your journey a little easier.

Warmly,
The {{.Brand}} Team
`,
		`
<html>
  <body>
    Dear {{.CustomerName}},<br/><br/>
    Thank you for booking your service with {{.Brand}}.<br/><br/>
    We're happy to let you know that your service order #{{.DisplayID}} has been successfully confirmed.<br/><br/>
    {{if .Attached}}Please find attached the invoice for your order.{{else}}<a href="{{.DownloadLink}}">Download Invoice</a>{{end}}<br/><br/>
    We'll be in touch shortly to guide you through the next steps and make sure everything goes smoothly.<br/><br/>
    We're here to support you and can't wait to make this part of your journey a little easier.<br/><br/>
    Warmly,<br/>
    The {{.Brand}} Team
  </body>
</html>
`),
	orders.LocaleAR: mustTemplate("confirmation.ar",
		`تم تأكيد طلب خدمتك في {{.Brand}} 🎉`,
		`
أهلًا {{.CustomerName}}،

شكرًا لاختيارك خدمات {{.Brand}}.

يسعدنا إبلاغك بأن طلب الخدمة رقم #{{.DisplayID}} قد تم تأكيده بنجاح.

{{if .Attached}}تجدين الفاتورة مرفقة بهذه الرسالة.{{else}}يمكنك تحميل الفاتورة من هنا: {{.DownloadLink}}{{end}}

سيتواصل معكِ فريقنا قريبًا لشرح الخطوات التالية والتأكد من أن كل شيء يسير بكل سهولة.

نحن معكِ في كل خطوة، ونتطلع لأن نجعل هذه التجربة أيسر وأجمل لكِ.

من القلب،
فريق {{.Brand}}
`,
		`
<html lang="ar" dir="rtl">
  <body style="text-align: right;">
    أهلًا {{.CustomerName}}،<br/><br/>
    شكرًا لاختيارك خدمات {{.Brand}}.<br/><br/>
    يسعدنا إبلاغك بأن طلب الخدمة رقم #{{.DisplayID}} قد تم تأكيده بنجاح.<br/><br/>
    {{if .Attached}}تجدين الفاتورة مرفقة بهذه الرسالة.{{else}}<a href="{{.DownloadLink}}">تحميل الفاتورة</a>{{end}}<br/><br/>
    سيتواصل معكِ فريقنا قريبًا لشرح الخطوات التالية والتأكد من أن كل شيء يسير بكل سهولة.<br/><br/>
    نحن معكِ في كل خطوة، ونتطلع لأن نجعل هذه التجربة أيسر وأجمل لكِ.<br/><br/>
    من القلب،<br/>
    فريق {{.Brand}}
  </body>
</html>
`),
}

var internalAlertTemplate = mustTemplate("internal.en",
	`New booking alert - {{.ServiceName}}`,
	`
Hello Team,

A new booking has been successfully received and requires processing.

Booking Details:
- Booking ID: {{.OrderID}}
- Service: {{.ServiceName}}

Customer Details:
- Customer Name: {{.CustomerName}}
- Customer Email: {{.CustomerEmail}}
- Customer Phone: {{.CustomerPhone}}

Please review and take the necessary next steps.

Thank you,
{{.Brand}}
`,
	`
<html>
  <body>
    Hello Team,<br/><br/>
    A new booking has been successfully received and requires processing.<br/><br/>
    <b>Booking Details:</b>
    <ul>
      <li><b>Booking ID:</b> {{.OrderID}}</li>
      <li><b>Service:</b> {{.ServiceName}}</li>
    </ul>
    <b>Customer Details:</b>
    <ul>
      <li><b>Customer Name:</b> {{.CustomerName}}</li>
      <li><b>Customer Email:</b> {{.CustomerEmail}}</li>
      <li><b>Customer Phone:</b> {{.CustomerPhone}}</li>
    </ul>
    Please review and take the necessary next steps.<br/><br/>
    Thank you,<br/>
    {{.Brand}}
  </body>
</html>
`)

var invoiceTemplate = mustTemplate("invoice.en",
	`Invoice for Order {{.OrderID}}`,
	`
Dear {{.CustomerName}},

Thank you for booking your service with {{.Brand}}.

Please find attached the invoice for your order.

Order Details:
- Order ID: {{.DisplayID}}
- Service Date: {{.ServiceDate}}
- Total Amount: {{.Total}}

Warmly,
The {{.Brand}} Team
`,
	`
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <p>Dear {{.CustomerName}},</p>
    <p>Thank you for booking your service with {{.Brand}}.</p>
    <p>Please find attached the invoice for your order.</p>
    <div style="background-color: #fff; padding: 15px; border-left: 4px solid #e50056;">
      <h3>Order Details</h3>
      <p><strong>Order ID:</strong> {{.DisplayID}}</p>
      <p><strong>Service Date:</strong> {{.ServiceDate}}</p>
      <p><strong>Total Amount:</strong> {{.Total}}</p>
    </div>
    <p>Warmly,<br/>The {{.Brand}} Team</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
  </body>
</html>
`)

func confirmationTemplate(locale string) emailTemplate {
	if t, ok := confirmationTemplates[locale]; ok {
		return t
	}
	return confirmationTemplates[orders.LocaleEN]
}
