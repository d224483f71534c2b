package model

var agentPalette = []string{
	"#FF5252", // red
	"#448AFF", // blue
	"#4CAF50", // green
	"#FF9800", // orange
	"#9C27B0", // purple
	"#00BCD4", // cyan
	"#FFEB3B", // yellow
	"#E91E63", // pink
	"#3F51B5", // indigo
	"#009688", // teal
	"#795548", // brown
	"#607D8B", // blue grey
}

// AgentColor returns the display colour for agent i. The palette cycles.
func AgentColor(i int) string {
	if i < 0 {
		i = -i
	}
	return agentPalette[i%len(agentPalette)]
}
