package usecase

import (
	"fmt"
	"strings"

	"plan-notifier/internal/notification/domain"
)

// titles maps language tag -> notification type -> push title. Spanish is the
// base locale the product shipped with.
var titles = map[string]map[string]string{
	"es": {
		domain.TypeJoinRequest:        "Solicitud de unión",
		domain.TypeInvitation:         "Invitación a un plan",
		domain.TypeInvitationAccepted: "Invitación aceptada",
		domain.TypeInvitationRejected: "Invitación rechazada",
		domain.TypeJoinAccepted:       "Solicitud aceptada",
		domain.TypeJoinRejected:       "Solicitud rechazada",
		domain.TypeFollowRequest:      "Solicitud de follow",
		domain.TypeFollowAccepted:     "Follow aceptado",
		domain.TypeFollowRejected:     "Follow rechazado",
		domain.TypeNewPlanPublished:   "Nuevo plan publicado",
		domain.TypePlanChatMessage:    "Nuevo comentario",
		domain.TypeWelcome:            "Bienvenido a Plan",
		domain.TypePlanLeft:           "Participante ha abandonado",
		domain.TypeRemovedFromPlan:    "Has sido eliminado de un plan",
		domain.TypeSpecialPlanDeleted: "Plan especial eliminado",
		domain.TypeSpecialPlanLeft:    "Salida de plan especial",
		domain.TypeCheckInStarted:     "Check-in iniciado",
		domain.TypeChatMessage:        "Nuevo mensaje",
	},
	"en": {
		domain.TypeJoinRequest:        "Join request",
		domain.TypeInvitation:         "Plan invitation",
		domain.TypeInvitationAccepted: "Invitation accepted",
		domain.TypeInvitationRejected: "Invitation declined",
		domain.TypeJoinAccepted:       "Request accepted",
		domain.TypeJoinRejected:       "Request declined",
		domain.TypeFollowRequest:      "Follow request",
		domain.TypeFollowAccepted:     "Follow accepted",
		domain.TypeFollowRejected:     "Follow declined",
		domain.TypeNewPlanPublished:   "New plan published",
		domain.TypePlanChatMessage:    "New comment",
		domain.TypeWelcome:            "Welcome to Plan",
		domain.TypePlanLeft:           "A participant has left",
		domain.TypeRemovedFromPlan:    "You were removed from a plan",
		domain.TypeSpecialPlanDeleted: "Special plan deleted",
		domain.TypeSpecialPlanLeft:    "Left the special plan",
		domain.TypeCheckInStarted:     "Check-in started",
		domain.TypeChatMessage:        "New message",
	},
}

var genericTitle = map[string]string{
	"es": "Notificación",
	"en": "Notification",
}

var genericBody = map[string]string{
	"es": "Abre la app para más detalles",
	"en": "Open the app for details",
}

// bodyTemplates holds the type-specific body sentences. Every other type uses
// the "{sender} • {planType}" form when a sender name is present.
var bodyTemplates = map[string]map[string]string{
	"es": {
		domain.TypeSpecialPlanDeleted: "%s ha eliminado el plan especial",
		domain.TypeSpecialPlanLeft:    "%s ha decidido abandonar el plan especial",
		domain.TypeChatMessage:        "Tienes un mensaje de %s",
	},
	"en": {
		domain.TypeSpecialPlanDeleted: "%s has deleted the special plan",
		domain.TypeSpecialPlanLeft:    "%s has left the special plan",
		domain.TypeChatMessage:        "You have a message from %s",
	},
}

// Composer turns a notification record plus the receiver's locale into a
// localized title/body pair. Unknown types and unknown locales degrade to
// generic strings instead of failing.
type Composer struct {
	defaultLang string
}

// NewComposer creates a Composer. defaultLocale selects the language used
// when a receiver has no locale or an unsupported one.
func NewComposer(defaultLocale string) *Composer {
	lang := matchLang(defaultLocale)
	if _, ok := titles[lang]; !ok {
		lang = "es"
	}
	return &Composer{defaultLang: lang}
}

// Compose builds the push content for n in the receiver's locale.
func (c *Composer) Compose(n *domain.Notification, locale string) domain.PushContent {
	lang := c.lang(locale)

	title, ok := titles[lang][n.Type]
	if !ok {
		title = genericTitle[lang]
	}

	return domain.PushContent{Title: title, Body: c.body(n, lang)}
}

func (c *Composer) body(n *domain.Notification, lang string) string {
	if tmpl, ok := bodyTemplates[lang][n.Type]; ok {
		return fmt.Sprintf(tmpl, n.SenderName)
	}
	if n.SenderName != "" {
		return fmt.Sprintf("%s • %s", n.SenderName, n.PlanType)
	}
	return genericBody[lang]
}

// lang resolves a locale code to a supported language by two-letter prefix,
// falling back to the default language.
func (c *Composer) lang(locale string) string {
	lang := matchLang(locale)
	if _, ok := titles[lang]; ok {
		return lang
	}
	return c.defaultLang
}

func matchLang(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if len(locale) < 2 {
		return ""
	}
	return locale[:2]
}
