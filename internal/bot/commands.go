package bot

import (
	"github.com/disgoorg/disgo/discord"
)

const (
	LevelCommandName       = "level"
	LeaderboardCommandName = "leaderboard"
	XPCommandName          = "xp"
	SettingsCommandName    = "settings"
)

// commands returns the global slash command set.
func commands() []discord.ApplicationCommandCreate {
	minAmount := 0
	minLevel := 1
	minPage := 1
	minFactor := 0.0

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        LevelCommandName,
			Description: "View a member's level and XP progress",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "Member to look up, defaults to you",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        LeaderboardCommandName,
			Description: "View the server XP leaderboard",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "page",
					Description: "Page to view",
					MinValue:    &minPage,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        XPCommandName,
			Description: "Manage member XP",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "add",
					Description: "Add XP to a member",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "member",
							Description: "Member to adjust",
							Required:    true,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "amount",
							Description: "Amount of XP",
							Required:    true,
							MinValue:    &minAmount,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Remove XP from a member",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "member",
							Description: "Member to adjust",
							Required:    true,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "amount",
							Description: "Amount of XP",
							Required:    true,
							MinValue:    &minAmount,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "set",
					Description: "Set a member's XP to an exact value",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "member",
							Description: "Member to adjust",
							Required:    true,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "amount",
							Description: "New XP total",
							Required:    true,
							MinValue:    &minAmount,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "activity",
					Description: "Rebuild a member's XP from activity counts",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "member",
							Description: "Member to rebuild",
							Required:    true,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "messages",
							Description: "Message count, omitted keeps the recorded value",
							MinValue:    &minAmount,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "voice_minutes",
							Description: "Voice minutes, omitted keeps the recorded value",
							MinValue:    &minAmount,
						},
					},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        SettingsCommandName,
			Description: "Configure the leveling system",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "view",
					Description: "Show the current leveling configuration",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "rates",
					Description: "Set XP rates",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionInt{
							Name:        "per_message",
							Description: "XP per eligible message",
							MinValue:    &minAmount,
						},
						discord.ApplicationCommandOptionInt{
							Name:        "per_voice_minute",
							Description: "XP per whole voice minute",
							MinValue:    &minAmount,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "cooldown",
					Description: "Set the message XP cooldown",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionInt{
							Name:        "seconds",
							Description: "Seconds between XP-earning messages",
							Required:    true,
							MinValue:    &minAmount,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "channel",
					Description: "Set the level announcement channel",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionChannel{
							Name:        "channel",
							Description: "Announcement channel, omitted disables announcements",
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "stacking",
					Description: "Choose whether members keep lower reward roles",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionBool{
							Name:        "keep_previous",
							Description: "Keep lower reward roles when a higher one is earned",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommandGroup{
					Name:        "blacklist",
					Description: "Manage channels excluded from XP",
					Options: []discord.ApplicationCommandOptionSubCommand{
						{
							Name:        "add",
							Description: "Exclude a channel from XP accrual",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionChannel{
									Name:        "channel",
									Description: "Channel to exclude",
									Required:    true,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Allow a channel to accrue XP again",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionChannel{
									Name:        "channel",
									Description: "Channel to allow",
									Required:    true,
								},
							},
						},
					},
				},
				discord.ApplicationCommandOptionSubCommandGroup{
					Name:        "multiplier",
					Description: "Manage role XP multipliers",
					Options: []discord.ApplicationCommandOptionSubCommand{
						{
							Name:        "set",
							Description: "Set the XP multiplier for a role",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionRole{
									Name:        "role",
									Description: "Role to configure",
									Required:    true,
								},
								discord.ApplicationCommandOptionFloat{
									Name:        "factor",
									Description: "Multiplier applied to earned XP",
									Required:    true,
									MinValue:    &minFactor,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Remove a role's XP multiplier",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionRole{
									Name:        "role",
									Description: "Role to clear",
									Required:    true,
								},
							},
						},
					},
				},
				discord.ApplicationCommandOptionSubCommandGroup{
					Name:        "reward",
					Description: "Manage level role rewards",
					Options: []discord.ApplicationCommandOptionSubCommand{
						{
							Name:        "set",
							Description: "Grant a role when a level is reached",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionInt{
									Name:        "level",
									Description: "Level that earns the role",
									Required:    true,
									MinValue:    &minLevel,
								},
								discord.ApplicationCommandOptionRole{
									Name:        "role",
									Description: "Role to grant",
									Required:    true,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Remove the reward for a level",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionInt{
									Name:        "level",
									Description: "Level to clear",
									Required:    true,
									MinValue:    &minLevel,
								},
							},
						},
					},
				},
				discord.ApplicationCommandOptionSubCommandGroup{
					Name:        "message",
					Description: "Manage level-up announcement messages",
					Options: []discord.ApplicationCommandOptionSubCommand{
						{
							Name:        "set",
							Description: "Set the announcement for a level, {user} and {level} are substituted",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionInt{
									Name:        "level",
									Description: "Level to announce",
									Required:    true,
									MinValue:    &minLevel,
								},
								discord.ApplicationCommandOptionString{
									Name:        "template",
									Description: "Announcement text",
									Required:    true,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Remove the announcement for a level",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionInt{
									Name:        "level",
									Description: "Level to clear",
									Required:    true,
									MinValue:    &minLevel,
								},
							},
						},
					},
				},
				discord.ApplicationCommandOptionSubCommandGroup{
					Name:        "managers",
					Description: "Manage roles allowed to use XP commands",
					Options: []discord.ApplicationCommandOptionSubCommand{
						{
							Name:        "add",
							Description: "Allow a role to use XP commands",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionRole{
									Name:        "role",
									Description: "Role to allow",
									Required:    true,
								},
							},
						},
						{
							Name:        "remove",
							Description: "Revoke a role's access to XP commands",
							Options: []discord.ApplicationCommandOption{
								discord.ApplicationCommandOptionRole{
									Name:        "role",
									Description: "Role to revoke",
									Required:    true,
								},
							},
						},
					},
				},
			},
		},
	}
}
