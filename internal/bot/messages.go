package bot

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-nickname-bot/internal/domain"
)

// Canned error replies, keyed the same way handlers classify failures.
const (
	msgStorageError       = "❌ Unable to save your data right now. Please try again in a moment."
	msgValidationError    = "❌ Invalid input. Please check your command and try again."
	msgServiceUnavailable = "❌ Service temporarily unavailable. Please try again later."
	msgRateLimit          = "❌ Too many requests. Please wait a moment before trying again."
	msgUnknownError       = "❌ An unexpected error occurred. Please try again later."
	msgMissingParameter   = "📝 Missing required parameter. Please check the command usage."
	msgDuplicateNickname  = "⚠️ You already have a nickname set in this group!"
	msgNicknameNotFound   = "⚠️ You don't have a nickname set in this group yet!"
	msgUnknownUser        = "❌ Unable to identify user. Please try again."
	msgGroupOnly          = "🤖 This bot only works in group chats. Please add me to a group to use nickname commands!"
	msgNotDurable         = "⚠️ Saved for now, but the change could not be written to disk and may be lost on restart."
)

// withInfo appends extra context to a canned reply.
func withInfo(base, info string) string {
	if info == "" {
		return base
	}
	return base + "\n\n💡 **Additional info:** " + info
}

const startText = "🤖 **Welcome to Nickname Bot!**\n\n" +
	"I help you manage custom nicknames in your group chat. " +
	"Here's what I can do:\n\n" +
	"**Available Commands:**\n" +
	"• `/start` - Show this introduction message\n" +
	"• `/add <nickname>` - Add a nickname for yourself\n" +
	"• `/all` - List all nicknames in this group\n" +
	"• `/change <nickname>` - Change your existing nickname\n" +
	"• `/remove` - Remove your nickname\n" +
	"• `/help` - Show detailed help for all commands\n\n" +
	"💡 **Tip:** All commands work only in group chats, and nicknames are specific to each group.\n\n" +
	"Get started by adding your nickname with `/add <your_nickname>`!"

const helpText = "🤖 **Nickname Bot - Command Help**\n\n" +
	"I help you manage custom nicknames in your group chat. " +
	"Here are all available commands with detailed descriptions:\n\n" +
	"**📋 Available Commands:**\n\n" +
	"🚀 **`/start`**\n" +
	"   • **Purpose:** Show bot introduction and overview\n" +
	"   • **Syntax:** `/start`\n" +
	"   • **Description:** Displays welcome message and basic command list\n\n" +
	"➕ **`/add <nickname>`**\n" +
	"   • **Purpose:** Add a nickname for yourself\n" +
	"   • **Syntax:** `/add YourNickname`\n" +
	"   • **Description:** Sets a custom nickname that others can see when listing all nicknames\n" +
	"   • **Example:** `/add CoolUser123`\n\n" +
	"📝 **`/all`**\n" +
	"   • **Purpose:** List all nicknames in this group\n" +
	"   • **Syntax:** `/all`\n" +
	"   • **Description:** Shows all group members who have set nicknames in numbered format\n\n" +
	"✏️ **`/change <nickname>`**\n" +
	"   • **Purpose:** Change your existing nickname\n" +
	"   • **Syntax:** `/change NewNickname`\n" +
	"   • **Description:** Updates your current nickname to a new one (you must have a nickname already)\n" +
	"   • **Example:** `/change SuperUser456`\n\n" +
	"🗑️ **`/remove`**\n" +
	"   • **Purpose:** Remove your nickname\n" +
	"   • **Syntax:** `/remove`\n" +
	"   • **Description:** Deletes your nickname from the group's list completely\n\n" +
	"❓ **`/help`**\n" +
	"   • **Purpose:** Show this detailed help message\n" +
	"   • **Syntax:** `/help`\n" +
	"   • **Description:** Displays comprehensive information about all available commands\n\n" +
	"**💡 Important Notes:**\n" +
	"• All commands work only in group chats\n" +
	"• Nicknames are specific to each group\n" +
	"• You can only manage your own nickname\n" +
	"• Nicknames are displayed alongside your Telegram username\n\n" +
	"**🔧 Need Help?**\n" +
	"If you encounter any issues, try using `/start` to see the basic overview, " +
	"or contact your group administrator."

const addUsageText = msgMissingParameter + "\n\n" +
	"**Usage:** `/add <your_nickname>`\n" +
	"**Example:** `/add CoolUser123`\n\n" +
	"💡 **Tip:** Your nickname should be something you'd like others in this group to call you!"

const noNicknamesText = "📝 **No nicknames added yet!**\n\n" +
	"Be the first to add your nickname with `/add <your_nickname>`!\n\n" +
	"💡 **Tip:** Nicknames help others in the group know what to call you."

func addedText(nickname, username string) string {
	return "✅ **Nickname added successfully!**\n\n" +
		"**Your nickname:** " + nickname + "\n" +
		"**Username:** @" + username + "\n\n" +
		"Others can now see your nickname when they use `/all` to list all nicknames in this group.\n\n" +
		"💡 **Tip:** Use `/change <new_nickname>` if you want to update it later!"
}

func alreadyAddedText(current string) string {
	return msgDuplicateNickname + "\n\n" +
		"**Current nickname:** " + current + "\n\n" +
		"If you want to change it, use `/change <new_nickname>` instead."
}

// listText renders "N. @username - nickname" lines in the given order.
func listText(recs []domain.NicknameRecord) string {
	if len(recs) == 0 {
		return noNicknamesText
	}
	plural := "nicknames"
	if len(recs) == 1 {
		plural = "nickname"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 **All Nicknames in This Group (%d %s):**\n\n", len(recs), plural)
	for i, r := range recs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. @%s - %s", i+1, r.Username, r.Nickname)
	}
	b.WriteString("\n\n💡 **Tip:** Use `/add <nickname>` to add yours, or `/change <nickname>` to update an existing one!")
	return b.String()
}

const changeNotFoundText = msgNicknameNotFound + "\n\n" +
	"Use `/add <nickname>` to add a nickname first, then you can change it later.\n\n" +
	"**Example:** `/add CoolUser123`"

func changeUsageText(current string) string {
	return msgMissingParameter + "\n\n" +
		"**Usage:** `/change <new_nickname>`\n" +
		"**Example:** `/change NewCoolUser456`\n\n" +
		"**Current nickname:** " + current + "\n\n" +
		"💡 **Tip:** Your new nickname should be something you'd like others in this group to call you!"
}

func unchangedText(nickname string) string {
	return "🤔 Your nickname is already set to **" + nickname + "**!\n\n" +
		"If you want to keep it the same, no action is needed. " +
		"Otherwise, please provide a different nickname."
}

func changedText(oldNick, newNick, username string) string {
	return "✅ **Nickname changed successfully!**\n\n" +
		"**Old nickname:** " + oldNick + "\n" +
		"**New nickname:** " + newNick + "\n" +
		"**Username:** @" + username + "\n\n" +
		"Others can now see your updated nickname when they use `/all` to list all nicknames in this group.\n\n" +
		"💡 **Tip:** Use `/change <nickname>` again if you want to update it further!"
}

const removeNotFoundText = msgNicknameNotFound + "\n\n" +
	"💡 **Tip:** Use `/add <nickname>` to add a nickname first, " +
	"then you can remove it later if needed."

func removedText(nickname, username string) string {
	return "✅ **Nickname removed successfully!**\n\n" +
		"**Removed nickname:** " + nickname + "\n" +
		"**Username:** @" + username + "\n\n" +
		"Your nickname has been deleted from this group. " +
		"You can add a new one anytime using `/add <nickname>`.\n\n" +
		"💡 **Tip:** Use `/all` to see the current list of nicknames in this group."
}
