package lemma

// elisions expands elided French clitics produced by tokenizing on
// apostrophes (l'entreprise → le entreprise).
var elisions = map[string]string{
	"l":  "le",
	"d":  "de",
	"j":  "je",
	"n":  "ne",
	"s":  "se",
	"c":  "ce",
	"m":  "me",
	"t":  "te",
	"qu": "que",
}

// baseLemmas covers the high-frequency irregular forms. Every value is a
// fixed point of the suffix rules, which keeps Normalize idempotent. The
// ingestion pipeline can export a fuller table merged via NewFromFile.
var baseLemmas = map[string]string{
	// articles, determiners, pronouns
	"la": "le", "les": "le", "des": "de", "du": "de",
	"une": "un", "au": "à", "aux": "à",
	"cette": "ce", "ces": "ce", "cet": "ce",
	"ma": "mon", "mes": "mon", "ta": "ton", "tes": "ton",
	"sa": "son", "ses": "son", "nos": "notre", "vos": "votre", "leurs": "leur",
	"ils": "il", "elles": "il", "elle": "il",
	"ceux": "celui", "celles": "celui", "celle": "celui",
	"tous": "tout", "toutes": "tout", "toute": "tout",
	"quelles": "quel", "quelle": "quel", "quels": "quel",

	// être
	"suis": "être", "es": "être", "est": "être", "sommes": "être",
	"êtes": "être", "sont": "être", "était": "être", "étais": "être",
	"étaient": "être", "été": "être", "étant": "être", "sera": "être",
	"seront": "être", "serait": "être", "soit": "être", "soient": "être",
	"fut": "être",

	// avoir
	"ai": "avoir", "as": "avoir", "a": "avoir", "avons": "avoir",
	"avez": "avoir", "ont": "avoir", "avait": "avoir", "avaient": "avoir",
	"eu": "avoir", "ayant": "avoir", "aura": "avoir", "auront": "avoir",
	"aurait": "avoir", "ait": "avoir", "aient": "avoir",

	// faire
	"fais": "faire", "fait": "faire", "faisons": "faire", "faites": "faire",
	"font": "faire", "faisait": "faire", "faisaient": "faire",
	"fera": "faire", "feront": "faire", "ferait": "faire", "faisant": "faire",

	// aller
	"vais": "aller", "vas": "aller", "va": "aller", "allons": "aller",
	"allez": "aller", "vont": "aller", "allait": "aller", "allaient": "aller",
	"ira": "aller", "iront": "aller", "irait": "aller", "allant": "aller",

	// pouvoir
	"peux": "pouvoir", "peut": "pouvoir", "pouvons": "pouvoir",
	"pouvez": "pouvoir", "peuvent": "pouvoir", "pouvait": "pouvoir",
	"pouvaient": "pouvoir", "pourra": "pouvoir", "pourront": "pouvoir",
	"pourrait": "pouvoir", "pu": "pouvoir", "puisse": "pouvoir",

	// devoir
	"dois": "devoir", "doit": "devoir", "devons": "devoir",
	"devez": "devoir", "doivent": "devoir", "devait": "devoir",
	"devaient": "devoir", "devra": "devoir", "devront": "devoir",
	"devrait": "devoir", "dû": "devoir",

	// vouloir
	"veux": "vouloir", "veut": "vouloir", "voulons": "vouloir",
	"voulez": "vouloir", "veulent": "vouloir", "voulait": "vouloir",
	"voudrait": "vouloir", "voulu": "vouloir",

	// savoir
	"sais": "savoir", "sait": "savoir", "savons": "savoir",
	"savez": "savoir", "savent": "savoir", "savait": "savoir",
	"saura": "savoir", "saurait": "savoir", "su": "savoir", "sachant": "savoir",

	// dire, voir, prendre, mettre, venir
	"dis": "dire", "dit": "dire", "disent": "dire", "disait": "dire",
	"vois": "voir", "voit": "voir", "voient": "voir", "voyait": "voir", "vu": "voir",
	"prends": "prendre", "prend": "prendre", "prennent": "prendre",
	"prenait": "prendre", "pris": "prendre", "prenant": "prendre",
	"mets": "mettre", "met": "mettre", "mettent": "mettre",
	"mettait": "mettre", "mis": "mettre", "mettant": "mettre",
	"viens": "venir", "vient": "venir", "viennent": "venir",
	"venait": "venir", "venu": "venir", "venant": "venir",

	// irregular plurals not covered by suffix rules
	"yeux": "œil", "cieux": "ciel", "messieurs": "monsieur",
	"mesdames": "madame", "travaux": "travail",

	// common -ais/-is nouns and adjectives the plural rule must not touch
	"français": "français", "anglais": "anglais", "mais": "mais",
	"fois": "fois", "mois": "mois", "pays": "pays", "temps": "temps",
	"plus": "plus", "moins": "moins", "toujours": "toujours",
	"alors": "alors", "après": "après", "très": "très", "dans": "dans",
	"sans": "sans", "sous": "sous", "vers": "vers", "chez": "chez",
	"pendant": "pendant", "cours": "cours", "processus": "processus",
}
