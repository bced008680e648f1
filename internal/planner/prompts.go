package planner

const systemPrompt = `Si skúsený dlhový poradca. Na základe údajov z dotazníka klienta navrhni
konkrétny akčný plán riešenia jeho finančnej situácie.

Pravidlá:
- Vychádzaj iba z poskytnutých údajov, nič si nevymýšľaj.
- Zoraď kroky podľa naliehavosti: najprv exekúcie, potom nedoplatky, potom úvery.
- Pri každom kroku uveď, čo má klient urobiť, na koho sa obrátiť a do kedy.
- Ak údaje chýbajú, uveď, ktoré informácie treba od klienta doplniť.
- Píš po slovensky, jednoducho a zrozumiteľne.`

// userPromptTemplate is rendered with planInput.
const userPromptTemplate = `Údaje klienta:

Mesačné príjmy domácnosti spolu: {{printf "%.2f" .Income}} €
Dlhy spolu (úvery, exekúcie, nedoplatky): {{printf "%.2f" .Debt}} €
Mesačné splátky spolu: {{printf "%.2f" .Repayments}} €

Kompletný dotazník (JSON):
{{.Record}}

Navrhni akčný plán.`
