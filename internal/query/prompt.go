package query

import "fmt"

// Prompt は補完APIへ送るsystem/userメッセージの組。
type Prompt struct {
	System string
	User   string
}

const systemPrompt = `You are a helpful AI assistant specializing in explaining local government laws and policies in plain English. Your role is to:

1. Provide clear, accurate information about local laws and regulations
2. Explain legal concepts in simple, everyday language
3. Always include appropriate disclaimers about legal advice
4. Cite general sources when possible (city websites, municipal codes, etc.)
5. Be helpful while being appropriately cautious about legal interpretation

IMPORTANT DISCLAIMERS TO INCLUDE:
- This information is for general guidance only
- This is not legal advice
- Laws can change frequently
- Always verify current regulations with official sources
- Consult a qualified attorney for specific legal matters

`

const majorCityGuidance = `The location is a major city with its own published municipal code. Where you can, refer to the specific city ordinances, departments, and official city websites that handle this topic.

`

const localityGuidance = `The location may be a smaller town, county, or a place outside the largest cities. Rules there often come from county or state law, so describe the typical rules, note where state or county law usually applies, and point to the local clerk's office or official government website for the exact ordinance text.

`

const closing = `Focus on being helpful, accurate, and clear while maintaining appropriate legal disclaimers.`

// BuildPrompt は質問と解決済みの地域名からプロンプトを構築する純粋関数。
// 主要都市かどうかで具体性の指示を切り替える。
func BuildPrompt(question, resolvedLocation string) Prompt {
	guidance := localityGuidance
	if IsMajorCity(resolvedLocation) {
		guidance = majorCityGuidance
	}

	user := fmt.Sprintf(
		"I have a question about local laws in %s. Please help me understand: %s\n\n"+
			"Please provide a clear explanation in plain English, include relevant disclaimers, "+
			"and suggest where I might find official sources for verification.",
		resolvedLocation, question,
	)

	return Prompt{
		System: systemPrompt + guidance + closing,
		User:   user,
	}
}
