package workflow

import "github.com/m3rciful/appealbot/core/telegram/state"

// Conversation steps.
const (
	StateCategory state.State = "appeal.category"
	StateAddress  state.State = "appeal.address"
	StateBody     state.State = "appeal.body"
	StatePolice   state.State = "appeal.police"

	StateFullName state.State = "registration.full_name"
	StateContact  state.State = "registration.contact"

	StateBanTerm     state.State = "ban.term"
	StateBanReason   state.State = "ban.reason"
	StateBanIDs      state.State = "ban.ids"
	StateUnbanIDs    state.State = "unban.ids"
	StateModeratorID state.State = "moderator.id"
)

// Callback uniques.
const (
	cbAppealStart   = "appeal_start"
	cbAppealBack    = "appeal_back"
	cbCategory      = "appeal_category"
	cbPoliceSkip    = "appeal_no_police"
	cbProfileChange = "profile_change"

	cbPanelClose  = "panel_close"
	cbPanelReturn = "panel_return"
	cbBan         = "users_ban"
	cbUnban       = "users_unban"
	cbBanTerm     = "ban_term"
	cbBanReason   = "ban_reason"

	cbModAdd    = "mods_add"
	cbModPage   = "mods_page"
	cbModCard   = "mods_card"
	cbModDemote = "mods_demote"
	cbNoop      = "noop"
)

// Session data keys.
const (
	keyMainMsg      = "main_msg"
	keyPromptMsg    = "prompt_msg"
	keyCategory     = "category"
	keyAddress      = "address"
	keyBody         = "body"
	keyBodyMsgs     = "body_msgs"
	keyAttachments  = "attachments"
	keyPolice       = "police"
	keyFullName     = "full_name"
	keyContact      = "contact"
	keyRegMsgs      = "reg_msgs"
	keyResumeAppeal = "resume_appeal"
	keyBanTerm      = "term"
	keyBanReason    = "reason"
)

// Categories offered on the first appeal step.
var Categories = []string{
	"Theft",
	"Vandalism",
	"Fraud",
	"Violence",
	"Road incident",
	"Noise",
	"Other",
}

// BanReasons offered when banning users.
var BanReasons = []string{
	"Spam",
	"False reports",
	"Abuse",
	"Other",
}

// BanTerm is one selectable ban duration.
type BanTerm struct {
	Label string
	Days  int
}

// BanTerms offered when banning users. Forever is a hundred years.
var BanTerms = []BanTerm{
	{"1 day", 1},
	{"1 week", 7},
	{"1 month", 30},
	{"1 year", 365},
	{"Forever", 36500},
}

const (
	textHello           = "Hello! Here you can report an incident to the moderation team."
	textSendAppeal      = "📝 Submit appeal"
	textYourID          = "Your id: %s"
	textPickCategory    = "Choose the appeal category:"
	textInputAddress    = "Enter the address where it happened:"
	textBodyStart       = "Describe what happened. You may attach photos, videos, voice or video notes."
	textContactPolice   = "Did you contact the police? Describe it or press the button below."
	textNoPolice        = "Did not contact police"
	textBodyEnd         = "✅ Thank you! Your appeal has been sent."
	textReturn          = "⬅️ Back"
	textCategoryLine    = "*Category:* %s"
	textAddressLine     = "*Address:* %s"
	textPoliceLine      = "*Police:* %s"
	textBanned          = "⛔ You are banned until %s (%s)."
	textInputName       = "Enter your full name:"
	textInputContact    = "Enter a phone number or another way to contact you:"
	textYourProfile     = "*Your profile*\nName: %s\nContact: %s"
	textChangeProfile   = "✏️ Change profile"
	textChooseAction    = "Choose an action:"
	textBan             = "🚫 Ban"
	textUnban           = "✅ Unban"
	textClose           = "✖️ Close"
	textChooseBanTerm   = "Choose the ban term:"
	textChooseBanReason = "Choose the ban reason:"
	textInputBanIDs     = "Send the ids of users to ban, separated by spaces:"
	textInputUnbanIDs   = "Send the ids of users to unban, separated by spaces:"
	textBanDone         = "🚫 Banned: %s\nTerm: %d days, until %s (%s)\nReason: %s\nSkipped: %d"
	textUnbanDone       = "✅ Unbanned: %s\nSkipped: %d"
	textNobody          = "nobody"
	textAppoint         = "➕ Appoint moderator"
	textModList         = "📋 Moderators"
	textInputModID      = "Send the id of the new moderator:"
	textModAppointed    = "%s is now a moderator."
	textYouModerator    = "You have been appointed moderator."
	textAlreadyModer    = "This user is already a moderator."
	textPrivileged      = "The administrator's role cannot be changed."
	textBadID           = "Invalid user id."
	textNoModerators    = "There are no moderators."
	textModInfo         = "*Moderator* %s\nRegistered %s"
	textDemote          = "⬇️ Demote"
	textModDemoted      = "%s is no longer a moderator."
	textYouUser         = "You are no longer a moderator."
	textNotModerator    = "This user is not a moderator."
	textPrev            = "◀️"
	textNext            = "▶️"
	textAppealsSummary  = "*Appeals*\nNew: %s\nTotal: %s\nLast: %s"
	textNoAppeals       = "There are no appeals yet."
	textNotAllowed      = "Not allowed."
	textExpired         = "This button is no longer active."
	textUnexpected      = "Something went wrong. Please try again later."
)

// ModeratorsPageSize is the number of moderators listed per page.
const ModeratorsPageSize = 5
