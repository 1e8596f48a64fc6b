package services

import (
	"fmt"
	"strings"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

const questionCount = 5

var roleQueries = map[models.Role][]string{
	models.RoleSDE: {
		"programming languages projects software development",
		"technical skills algorithms data structures",
		"system design architecture frameworks",
	},
	models.RoleDataScientist: {
		"data analysis machine learning models",
		"statistics python R SQL databases",
		"visualization analytics business insights",
	},
	models.RoleProductManager: {
		"product management stakeholder business",
		"project management leadership team",
		"metrics KPIs user research strategy",
	},
}

var defaultRoleQueries = []string{"experience skills projects"}

// RoleQueries returns the retrieval queries used to pull resume context for a role.
func RoleQueries(role models.Role) []string {
	if q, ok := roleQueries[role]; ok {
		return q
	}
	return defaultRoleQueries
}

var questionBanks = map[models.Role][]string{
	models.RoleSDE: {
		"Tell me about a challenging software development project you've worked on.",
		"How do you approach debugging complex technical issues?",
		"Describe your experience with software design patterns and architecture.",
		"How do you ensure code quality and maintainability in your projects?",
		"What's your approach to learning new technologies and frameworks?",
	},
	models.RoleDataScientist: {
		"Describe a data science project where you had to work with messy or incomplete data.",
		"How do you approach feature selection and engineering in your models?",
		"Tell me about a time when you had to explain complex analytical findings to non-technical stakeholders.",
		"What's your process for evaluating and validating machine learning models?",
		"How do you stay current with new developments in data science and machine learning?",
	},
	models.RoleProductManager: {
		"Describe how you prioritize features when building a product roadmap.",
		"Tell me about a time when you had to make a difficult product decision with limited data.",
		"How do you gather and incorporate user feedback into product development?",
		"Describe your approach to working with cross-functional teams.",
		"How do you measure product success and define key performance indicators?",
	},
}

var genericQuestionBank = []string{
	"Tell me about your professional background.",
	"What interests you about this role?",
	"Describe a challenging project you've worked on.",
	"How do you handle difficult situations at work?",
	"What are your career goals?",
}

// QuestionBank returns the canned questions for a role.
func QuestionBank(role models.Role) []string {
	if b, ok := questionBanks[role]; ok {
		return b
	}
	return genericQuestionBank
}

func structuredQuestionsPrompt(role, retrieved string) string {
	return fmt.Sprintf(`Based on the candidate's resume content and the role of %[1]s, generate exactly 5 specific interview questions.

Retrieved relevant resume content:
%[2]s

Role: %[1]s

Generate 5 specific questions that:
1. Reference specific points from their resume content
2. Are highly relevant to the %[1]s role
3. Allow the candidate to elaborate on their experience
4. Help assess their skills and expertise for this specific role
5. Are personalized based on their background

Respond with a JSON object of the form {"questions": ["...", "...", "...", "...", "..."]} and nothing else.

Important: Generate exactly 5 questions in the specified format.`, role, retrieved)
}

func unstructuredQuestionsPrompt(role, retrieved string) string {
	var resume string
	if retrieved != "" {
		resume = "Resume content: " + retrieved
	}
	return fmt.Sprintf(`Based on the candidate's resume and the role of %[1]s, generate exactly 5 specific interview questions.

Role: %[1]s

%[2]s

Generate 5 questions that are relevant to the %[1]s role and allow assessment of the candidate's skills and experience.
Return only the questions, one per line, numbered 1-5.`, role, resume)
}

func introPrompt(role string) string {
	return fmt.Sprintf(`You are an AI interviewer conducting a %s interview.
Generate a warm, professional greeting that:
1. Welcomes the candidate
2. Briefly explains what will happen in the interview
3. Encourages them to relax and be themselves
4. Asks them to introduce themselves

Keep it conversational and friendly, around 2-3 sentences.`, role)
}

func introFallback(role string) string {
	return fmt.Sprintf("Welcome to your %s interview! I'm excited to learn more about your background and experience. Please start by introducing yourself and telling me a bit about your professional journey.", role)
}

func transitionsPrompt(n int) string {
	return fmt.Sprintf(`Generate %[1]d smooth, natural transition phrases for an AI interview.
These phrases will be used between questions to maintain conversational flow. Do not give the candidate any feedback in your transitions;
keep it like a normal conversation between a recruiter and a candidate, e.g. "ok, let's move on to the next question", not "great answer, let's move on to the next question".
Requirements:
1. Keep them brief (1-2 sentences)
2. Sound natural and encouraging
3. Vary the phrasing to avoid repetition
4. Maintain professional but friendly tone
5. Include acknowledgment and smooth segue

Return exactly %[1]d transitions, one per line.`, n)
}

var defaultTransitions = []string{
	"Great! Let's move on to the next question.",
	"Excellent answer. Here's another question for you.",
	"That's insightful. Let's continue with the next topic.",
	"Good explanation. Now let's discuss another aspect.",
	"Perfect! Let's explore another area.",
	"Thank you for that detailed response. Moving forward,",
	"Interesting perspective. Let's shift our focus to",
	"That's very helpful. Now I'd like to ask about",
}

// the failure fallback rotates through the first five only
const failureTransitionCount = 5

const (
	introTransitionFallback   = "Thank you for that introduction. Now let's dive into some questions about your experience."
	closingTransitionFallback = "Excellent! That concludes our interview questions. Thank you for your time today."
	genericTransitionFallback = "Great answer. Let's continue with the next question."
)

func dynamicTransitionPrompt(answer string, questionNum, total int, isIntro bool) string {
	if isIntro {
		return fmt.Sprintf(`The candidate just introduced themselves with: "%s"

Generate a brief, warm transition that:
1. Acknowledges something specific from their introduction
2. Transitions smoothly to the technical questions
3. Keeps them comfortable and engaged

Keep it to 1-2 sentences and natural.`, answer)
	}

	progress := fmt.Sprintf("question %d of %d", questionNum, total)
	if questionNum == total {
		return fmt.Sprintf(`This was the final question (%s). The candidate answered: "%s"

Generate a brief closing transition that:
1. Thanks them for their time
2. Indicates the interview is complete
3. Sounds warm and professional

Keep it to 1-2 sentences.`, progress, answer)
	}
	return fmt.Sprintf(`We're on %s. The candidate just answered: "%s"

Generate a brief transition that:
1. Briefly acknowledges their answer (without detailed feedback)
2. Smoothly moves to the next question
3. Maintains positive momentum

Keep it to 1-2 sentences and conversational.`, progress, answer)
}

func scoreTurnPrompt(role string, t models.Turn) string {
	return fmt.Sprintf(`You are evaluating a %s interview answer. Provide a detailed assessment.

Question: %s
Answer: %s

Evaluate this answer on a scale of 0-10 and provide:
1. A numeric score (0-10)
2. Detailed feedback (2-3 sentences)
3. Key strengths (list up to 3)
4. Areas for improvement (list up to 3)

Format your response as:
SCORE: [number]
FEEDBACK: [detailed feedback]
STRENGTHS: [strength1] | [strength2] | [strength3]
IMPROVEMENTS: [improvement1] | [improvement2] | [improvement3]

If any section has fewer items, just list what applies.`, role, t.QuestionText, t.AnswerText)
}

const consistencyAnswerChars = 200

func consistencyPrompt(turns []models.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("Q%d: %s... A: %s...", i+1, t.QuestionText, utils.Truncate(t.AnswerText, consistencyAnswerChars))
	}
	return fmt.Sprintf(`Analyze the consistency across these interview answers. Look for:
1. Consistent technical knowledge level
2. Consistent communication style
3. Logical flow between related topics
4. No contradictory statements

Answers:
%s

Rate the consistency on a scale of 0-10 where:
- 10: Highly consistent, well-aligned responses
- 7-9: Mostly consistent with minor variations
- 4-6: Some inconsistencies but generally coherent
- 1-3: Notable inconsistencies or contradictions
- 0: Major contradictions or incoherent

Respond with just the number (0-10).`, strings.Join(lines, "\n"))
}

func overallFeedbackPrompt(role string, avgScore float64, a models.Analytics) string {
	return fmt.Sprintf(`Generate overall interview feedback for a %s candidate.

Interview Summary:
- Average Score: %.1f/10
- Total Duration: %s
- Communication Clarity: %s
- Technical Depth: %s
- Speaking Pace: %s

Provide 2-3 sentences of constructive overall feedback that:
1. Acknowledges their strengths
2. Provides encouraging but honest assessment
3. Gives a sense of their readiness for the role

Be professional, constructive, and encouraging.`, role, avgScore, a.TotalDuration, a.CommunicationClarity, a.TechnicalDepth, a.SpeakingPace)
}

const overallFeedbackFallback = "Thank you for completing the interview. Your responses demonstrated good engagement with the questions and relevant experience for the role."

type improvementCount struct {
	text  string
	count int
}

func recommendationsPrompt(role string, top []improvementCount, a models.Analytics) string {
	lines := make([]string, len(top))
	for i, imp := range top {
		lines[i] = fmt.Sprintf("- %s (mentioned %d times)", imp.text, imp.count)
	}
	return fmt.Sprintf(`Generate 3-5 specific, actionable recommendations for a %[1]s candidate based on their interview performance.

Key improvement areas mentioned:
%[2]s

Analytics:
- Communication Clarity: %[3]s
- Technical Depth: %[4]s
- Speaking Pace: %[5]s

Provide specific, actionable recommendations that:
1. Address the most common improvement areas
2. Are relevant to the %[1]s role
3. Include concrete steps they can take
4. Are encouraging and constructive

Return as a simple list, one recommendation per line.`, role, strings.Join(lines, "\n"), a.CommunicationClarity, a.TechnicalDepth, a.SpeakingPace)
}

func recommendationsFallback(role string) []string {
	return []string{
		fmt.Sprintf("Continue developing your %s skills through hands-on projects", strings.ToLower(role)),
		"Practice explaining technical concepts clearly and concisely",
		"Review fundamental concepts relevant to your target role",
	}
}

const (
	degradedFeedback    = "Unable to evaluate this response due to a technical issue."
	degradedImprovement = "Technical evaluation error occurred"
	defaultFeedback     = "Unable to generate detailed feedback."
)
