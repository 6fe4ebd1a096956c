package qcm

import "fmt"

// Per-difficulty instructions injected into the generation prompts.
var difficultyQuestionRules = map[string]string{
	DifficultyEasy: `- Les questions doivent tester la compréhension basique et le rappel
- Se concentrer sur les définitions, faits simples et concepts directs
- Éviter le raisonnement complexe ou la réflexion en plusieurs étapes
- Les questions doivent être directement répondables à partir du texte`,
	DifficultyMedium: `- Les questions doivent tester la compréhension et l'application
- Inclure des questions nécessitant de l'inférence ou des connexions entre concepts
- Mélange de questions factuelles et analytiques
- Certaines questions peuvent nécessiter de comprendre le contexte`,
	DifficultyHard: `- Les questions doivent tester l'analyse, la synthèse et l'évaluation
- Inclure des questions nécessitant une compréhension approfondie
- Poser des questions sur les relations, implications et cas limites
- Les questions peuvent nécessiter de combiner plusieurs informations
- Inclure des questions testant une compréhension nuancée`,
}

var difficultyChoiceRules = map[string]string{
	DifficultyEasy: `RÈGLES POUR LES MAUVAIS CHOIX (FACILE):
- Les mauvais choix doivent être CLAIREMENT incorrects
- Ils doivent être faciles à éliminer pour quelqu'un avec des connaissances basiques
- Utiliser des concepts sans rapport ou des erreurs factuelles évidentes
- Un étudiant avec une compréhension minimale doit facilement identifier la bonne réponse`,
	DifficultyMedium: `RÈGLES POUR LES MAUVAIS CHOIX (MOYEN):
- Un mauvais choix (wrong_choice_1) doit être PLAUSIBLE - pourrait tromper quelqu'un
- Un mauvais choix (wrong_choice_2) doit être clairement incorrect
- Le choix plausible doit être lié au sujet mais subtilement incorrect`,
	DifficultyHard: `RÈGLES POUR LES MAUVAIS CHOIX (DIFFICILE):
- LES DEUX mauvais choix doivent être TRÈS PLAUSIBLES
- Ils nécessitent une compréhension approfondie pour les distinguer de la bonne réponse
- Utiliser des idées reçues subtiles, des cas limites ou des demi-vérités
- Même les étudiants bien informés doivent réfléchir attentivement`,
}

func questionSystemPrompt(topic string, number int, difficulty string) string {
	return fmt.Sprintf(`Tu es un expert en conception d'évaluations éducatives créant des Questions à Choix Multiples (QCM).

Ta tâche est de générer exactement %d questions sur "%s" basées sur la base de connaissances fournie.

NIVEAU DE DIFFICULTÉ: %s
%s

RÈGLES:
1. Génère EXACTEMENT %d questions - ni plus, ni moins
2. Les questions doivent être répondables à partir de la base de connaissances fournie
3. Les questions doivent être claires, non ambiguës et bien formulées
4. Chaque question doit tester un aspect ou concept différent
5. NE PAS inclure les réponses ou les choix - juste les questions
6. Les questions doivent être EN FRANÇAIS
7. Éviter les questions oui/non - poser des questions "quoi", "quel", "comment", "pourquoi"

FORMAT DE SORTIE:
Retourne un objet JSON avec un tableau "questions" contenant exactement %d chaînes de questions:
{
    "questions": [
        "Première question ici?",
        "Deuxième question ici?"
    ]
}`, number, topic, DifficultyLabel(difficulty), difficultyQuestionRules[difficulty], number, number)
}

func questionUserPrompt(topic string, number int, difficulty, knowledgeContext string) string {
	return fmt.Sprintf(`À partir de cette base de connaissances sur "%s", génère exactement %d questions de niveau %s:

<base_de_connaissances>
%s
</base_de_connaissances>

Génère %d questions EN FRANÇAIS. Retourne UNIQUEMENT l'objet JSON avec le tableau de questions.`,
		topic, number, DifficultyLabel(difficulty), knowledgeContext, number)
}

func answerSystemPrompt(topic, difficulty string) string {
	return fmt.Sprintf(`Tu es un expert en création de QCM (Questions à Choix Multiples) pour des évaluations éducatives.

Ta tâche est de créer les choix de réponse pour une question sur "%s".

%s

RÈGLES DE CRÉATION DES RÉPONSES:
1. La bonne réponse (right_choice) DOIT être directement supportée par la base de connaissances
2. Garder tous les choix de longueur et style similaires
3. Éviter "toutes les réponses ci-dessus" ou "aucune des réponses"
4. Chaque choix doit être une réponse complète et autonome
5. Extraire le texte source pertinent qui supporte ta bonne réponse
6. TOUT DOIT ÊTRE EN FRANÇAIS

FORMAT DE SORTIE (JSON):
{
    "right_choice": "La bonne réponse basée sur les connaissances",
    "wrong_choice_1": "Premier choix incorrect",
    "wrong_choice_2": "Deuxième choix incorrect",
    "source_text": "Le texte exact de la base de connaissances qui supporte la bonne réponse"
}`, topic, difficultyChoiceRules[difficulty])
}

func answerUserPrompt(question, difficulty, knowledgeContext string) string {
	return fmt.Sprintf(`Crée les choix QCM pour cette question:

QUESTION: %s

BASE DE CONNAISSANCES:
%s

À partir de ces connaissances, crée:
1. La bonne réponse (doit être supportée par les connaissances)
2. Deux mauvais choix suivant les règles de difficulté %s
3. Extrait le texte source qui supporte ta réponse

TOUT EN FRANÇAIS. Retourne UNIQUEMENT l'objet JSON.`, question, knowledgeContext, DifficultyLabel(difficulty))
}
